package composer

import (
	"errors"
	"html/template"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/debemdeboas/the-feed/internal/auth"
	"github.com/debemdeboas/the-feed/internal/config"
	"github.com/debemdeboas/the-feed/internal/model"
	"github.com/debemdeboas/the-feed/internal/routes"
	"github.com/debemdeboas/the-feed/internal/util"
)

// PostCounter reports how many posts an identity has written.
type PostCounter interface {
	CountByOwner(owner model.UserID) (int, error)
}

type Handler struct {
	sessions *Sessions
	previews *PreviewStore
	posts    PostCounter
	limiter  *SubmitLimiter
	tmpl     *template.Template

	maxImageBytes int64
}

func NewHandler(sessions *Sessions, previews *PreviewStore, posts PostCounter, limiter *SubmitLimiter, templates fs.FS, maxImageBytes int) (*Handler, error) {
	tmpl, err := template.ParseFS(templates,
		config.TemplatesLocalDir+"/"+config.TemplateLayout,
		config.TemplatesLocalDir+"/"+config.TemplateIndex,
		config.TemplatesLocalDir+"/"+config.TemplateIdentity,
		config.TemplatesLocalDir+"/"+config.TemplateComposer,
	)
	if err != nil {
		return nil, err
	}

	return &Handler{
		sessions:      sessions,
		previews:      previews,
		posts:         posts,
		limiter:       limiter,
		tmpl:          tmpl,
		maxImageBytes: int64(maxImageBytes),
	}, nil
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(routes.RootPath, h.ServeIndex)
	mux.HandleFunc(routes.ComposeImage, h.ServeSelectImage)
	mux.HandleFunc(routes.ComposeImageRemove, h.ServeRemoveImage)
	mux.HandleFunc(routes.ComposeSubmit, h.ServeSubmit)
	mux.HandleFunc(routes.ComposeRestore, h.ServeRestore)
	mux.HandleFunc(routes.Preview, h.ServePreview)
}

type view struct {
	*model.PageData
	State State
	// Text is echoed back into the input; the composer never stores it.
	Text  string
	Error string
}

func (v view) ImageAction() string {
	if v.State.HasImage() {
		return "Change"
	}
	return "Add"
}

// composerFor returns the session's composer, creating one if the cookie is missing or stale.
func (h *Handler) composerFor(w http.ResponseWriter, r *http.Request) *Composer {
	if cookie, err := r.Cookie(config.CookieComposerID); err == nil {
		if c, ok := h.sessions.Get(SessionID(cookie.Value)); ok {
			return c
		}
	}

	c := h.sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     config.CookieComposerID,
		Value:    string(c.ID()),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c
}

func (h *Handler) newView(r *http.Request, c *Composer) view {
	identity := auth.IdentityFromContext(r.Context())
	pd := model.NewPageData(r, identity)

	if identity.SignedIn && h.posts != nil {
		n, err := h.posts.CountByOwner(identity.ID)
		if err != nil {
			composerLogger.Warn().Err(err).Str("user_id", string(identity.ID)).Msg("Error counting posts")
		}
		pd.PostCount = n
	}

	v := view{PageData: pd, State: c.State()}
	if v.State.LastError != nil {
		v.Error = "Your post could not be published."
	}
	return v
}

// render writes the composer partial for htmx requests and the full page otherwise.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, v view) {
	name := config.TemplateLayout
	if r.Header.Get(config.HHxRequest) != "" {
		name = "composer"
	}

	w.Header().Set(config.HCType, config.CTypeHTML)
	w.Header().Set(config.HETag, util.ContentHash([]byte(v.PageURL+string(v.State.PreviewURL)+v.Text+v.Error)))
	w.WriteHeader(status)
	if err := h.tmpl.ExecuteTemplate(w, name, v); err != nil {
		composerLogger.Error().Err(err).Str("template", name).Msg("Error rendering template")
	}
}

func (h *Handler) ServeIndex(w http.ResponseWriter, r *http.Request) {
	c := h.composerFor(w, r)

	v := h.newView(r, c)
	// Refreshes triggered by submission events carry the text being typed.
	v.Text = r.FormValue(config.FormPostInput)
	h.render(w, r, http.StatusOK, v)
}

func (h *Handler) ServeSelectImage(w http.ResponseWriter, r *http.Request) {
	c := h.composerFor(w, r)

	text, img, err := h.readUpload(w, r)
	if err == nil {
		err = c.SelectImage(img)
	}

	v := h.newView(r, c)
	v.Text = text

	switch {
	case err == nil:
		h.render(w, r, http.StatusOK, v)
	case errors.Is(err, ErrImageTooLarge):
		v.Error = "That image is too large."
		h.render(w, r, http.StatusRequestEntityTooLarge, v)
	case errors.Is(err, ErrUnsupportedImage):
		v.Error = "Only image files can be attached."
		h.render(w, r, http.StatusUnsupportedMediaType, v)
	default:
		composerLogger.Warn().Err(err).Str("session_id", string(c.ID())).Msg("Error reading image upload")
		v.Error = config.ErrImageFieldInvalid
		h.render(w, r, http.StatusBadRequest, v)
	}
}

// Sniffed types that are not images fall back to the declared type only for
// raster formats the sniffer does not recognise.
var declaredImageTypes = map[string]bool{
	"image/webp": true,
	"image/avif": true,
	"image/heic": true,
	"image/heif": true,
}

const maxTextFieldBytes = 64 << 10

// readUpload streams the multipart form, returning the typed text and the
// picked image. The image is nil without error when no file was picked. The
// text is returned even when the image is refused.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (string, *model.Image, error) {
	limit := h.maxImageBytes
	if limit <= 0 {
		limit = 32 << 20
	}
	// Leave room for the multipart envelope and the other form fields.
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)

	mr, err := r.MultipartReader()
	if err != nil {
		return "", nil, err
	}

	var (
		text    string
		img     *model.Image
		readErr error
	)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A refused image already decided the outcome; the rest of the body
			// may be cut off by the size cap.
			if readErr != nil {
				break
			}
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return text, nil, ErrImageTooLarge
			}
			return text, nil, err
		}

		switch part.FormName() {
		case config.FormPostInput:
			data, err := io.ReadAll(io.LimitReader(part, maxTextFieldBytes))
			if err != nil {
				return text, nil, err
			}
			text = string(data)
		case config.FormImage:
			if readErr != nil || img != nil {
				break
			}
			img, readErr = readImagePart(part, limit)
		}
		part.Close()
	}

	if readErr != nil {
		return text, nil, readErr
	}
	return text, img, nil
}

func readImagePart(part *multipart.Part, limit int64) (*model.Image, error) {
	data, err := io.ReadAll(io.LimitReader(part, limit+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, ErrImageTooLarge
		}
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrImageTooLarge
	}
	if len(data) == 0 {
		return nil, nil
	}

	contentType := http.DetectContentType(data)
	if declared := strings.ToLower(part.Header.Get(config.HCType)); !strings.HasPrefix(contentType, "image/") && declaredImageTypes[declared] {
		contentType = declared
	}

	return &model.Image{
		Name:        part.FileName(),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func (h *Handler) ServeRemoveImage(w http.ResponseWriter, r *http.Request) {
	c := h.composerFor(w, r)
	c.RemoveImage()

	v := h.newView(r, c)
	v.Text = r.FormValue(config.FormPostInput)
	h.render(w, r, http.StatusOK, v)
}

func (h *Handler) ServeSubmit(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if !identity.SignedIn {
		http.Error(w, config.ErrUnauthorized, http.StatusUnauthorized)
		return
	}

	c := h.composerFor(w, r)

	text := r.FormValue(config.FormPostInput)
	sub, err := c.SubmitAdmitted(r.Context(), text, func() bool {
		return h.limiter.Allow(c.ID())
	})

	v := h.newView(r, c)

	var validationErr *ValidationError
	switch {
	case err == nil:
		w.Header().Set("X-Submission-Id", sub.ID)
		h.render(w, r, http.StatusAccepted, v)
	case errors.As(err, &validationErr):
		v.Text = text
		v.Error = "Write something before posting."
		h.render(w, r, http.StatusUnprocessableEntity, v)
	case errors.Is(err, ErrSubmissionInProgress):
		v.Text = text
		v.Error = "Your previous post is still being published."
		h.render(w, r, http.StatusConflict, v)
	case errors.Is(err, ErrRateLimited):
		v.Text = text
		v.Error = config.ErrTooManySubmits
		w.Header().Set("Retry-After", strconv.Itoa(60))
		h.render(w, r, http.StatusTooManyRequests, v)
	default:
		composerLogger.Error().Err(err).Str("session_id", string(c.ID())).Msg("Error submitting post")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
	}
}

func (h *Handler) ServeRestore(w http.ResponseWriter, r *http.Request) {
	c := h.composerFor(w, r)
	text, _ := c.Restore()

	v := h.newView(r, c)
	v.Text = text
	h.render(w, r, http.StatusOK, v)
}

func (h *Handler) ServePreview(w http.ResponseWriter, r *http.Request) {
	img, ok := h.previews.Resolve(r.PathValue("id"))
	if !ok {
		http.Error(w, config.ErrPreviewNotFound, http.StatusNotFound)
		return
	}

	w.Header().Set(config.HCType, img.ContentType)
	w.Header().Set(config.HCacheControl, "no-store")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
	w.Header().Set("Content-Length", strconv.Itoa(img.Size()))
	w.WriteHeader(http.StatusOK)
	w.Write(img.Data)
}
