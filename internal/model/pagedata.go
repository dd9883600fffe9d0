package model

import (
	"net/http"

	"github.com/debemdeboas/the-feed/internal/config"
)

type PageData struct {
	SiteName      string
	PageURL       string
	Placeholder   string
	DefaultAvatar string

	Identity Identity

	// Number of posts written by the current identity.
	PostCount int
}

func NewPageData(r *http.Request, identity Identity) *PageData {
	pd := &PageData{
		PageURL:  r.URL.Path,
		Identity: identity,
	}
	if config.AppConfig != nil {
		pd.SiteName = config.AppConfig.Site.Name
		pd.Placeholder = config.AppConfig.Site.Placeholder
		pd.DefaultAvatar = config.AppConfig.Site.DefaultAvatar
	}
	return pd
}

func (pd *PageData) Avatar() string {
	return pd.Identity.Avatar(pd.DefaultAvatar)
}
