package templating

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/template"

	"github.com/yegors/class-transcribe/pkg/logger"
)

// Engine handles template loading, caching, and rendering. Templates are
// registered under a name either from inline text or from a file; file
// templates can be reloaded without a restart.
type Engine struct {
	templateCache map[string]*template.Template
	templatePaths map[string]string
	cacheMutex    sync.RWMutex
	logger        *logger.Logger
}

// NewEngine creates a new template engine
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{
		templateCache: make(map[string]*template.Template),
		templatePaths: make(map[string]string),
		logger:        log.Named("template-engine"),
	}
}

// Parse registers an inline template
func (e *Engine) Parse(name, text string) error {
	tmpl, err := parse(name, text)
	if err != nil {
		return err
	}

	e.cacheMutex.Lock()
	defer e.cacheMutex.Unlock()
	e.templateCache[name] = tmpl
	delete(e.templatePaths, name)
	return nil
}

// LoadFile registers a template read from templatePath
func (e *Engine) LoadFile(name, templatePath string) error {
	tmpl, err := e.loadTemplate(name, templatePath)
	if err != nil {
		return err
	}

	e.cacheMutex.Lock()
	defer e.cacheMutex.Unlock()
	e.templateCache[name] = tmpl
	e.templatePaths[name] = templatePath
	e.logger.Debug("Template loaded and cached",
		logger.String("name", name),
		logger.String("template_path", templatePath))
	return nil
}

// Has reports whether name is registered
func (e *Engine) Has(name string) bool {
	e.cacheMutex.RLock()
	defer e.cacheMutex.RUnlock()
	_, ok := e.templateCache[name]
	return ok
}

// Render executes the named template with data
func (e *Engine) Render(name string, data any) (string, error) {
	e.cacheMutex.RLock()
	tmpl, ok := e.templateCache[name]
	e.cacheMutex.RUnlock()
	if !ok {
		return "", fmt.Errorf("template %q is not registered", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// ReloadAllTemplates re-reads every file-backed template
func (e *Engine) ReloadAllTemplates() error {
	e.cacheMutex.Lock()
	defer e.cacheMutex.Unlock()

	var errors []string
	reloadedCount := 0

	for name, templatePath := range e.templatePaths {
		tmpl, err := e.loadTemplate(name, templatePath)
		if err != nil {
			errors = append(errors, fmt.Sprintf("%s: %v", templatePath, err))
			continue
		}
		e.templateCache[name] = tmpl
		reloadedCount++
	}

	if len(errors) > 0 {
		e.logger.Error("Some templates failed to reload",
			logger.Int("successful", reloadedCount),
			logger.Int("failed", len(errors)))
		return fmt.Errorf("failed to reload %d templates: %v", len(errors), errors)
	}

	e.logger.Info("All templates reloaded successfully",
		logger.Int("count", reloadedCount))
	return nil
}

// loadTemplate loads a template from file
func (e *Engine) loadTemplate(name, templatePath string) (*template.Template, error) {
	content, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file '%s': %w", templatePath, err)
	}
	return parse(name, string(content))
}

func parse(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", name, err)
	}
	return tmpl, nil
}

var funcs = template.FuncMap{
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	"trim":  strings.TrimSpace,
}
