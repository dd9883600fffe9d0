package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/debemdeboas/the-feed/internal/config"
)

var (
	okStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// render returns the defaulted config encoded for the output file's extension.
func render(outputFile string) (string, error) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	header := "# The Feed Configuration Example\n# Copy this file to config.yaml (or config.toml) and customize as needed\n\n"

	if strings.EqualFold(filepath.Ext(outputFile), ".toml") {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return "", err
		}
		return header + buf.String(), nil
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return header + string(yamlData), nil
}

func main() {
	outputFile := "config.example.yaml"
	if len(os.Args) > 1 {
		outputFile = os.Args[1]
	}

	output, err := render(outputFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render(fmt.Sprintf("Error generating config: %v", err)))
		os.Exit(1)
	}

	if outputFile == "-" {
		fmt.Print(output)
		return
	}

	if err := os.WriteFile(outputFile, []byte(output), 0644); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render(fmt.Sprintf(config.ErrWriteConfigContentFmt, err)))
		os.Exit(1)
	}
	fmt.Println(okStyle.Render("Generated example config: ") + outputFile)
}
