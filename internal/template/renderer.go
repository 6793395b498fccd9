package template

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"NotiFlow/internal/models"
)

// Store resolves persisted templates, the highest-priority tier.
// A nil result with a nil error means "no such template".
type Store interface {
	GetByName(ctx context.Context, name string, channel models.Channel) (*models.Template, error)
}

// Rendered is the output of one resolution+render pass.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Renderer resolves a template name through four tiers (store,
// filesystem, builtins, safe fallback) and renders it with the
// substitution engine. Render never fails: a template bug degrades to
// the fallback document instead of blocking delivery.
type Renderer struct {
	store Store // optional
	dir   string
	cache *gocache.Cache
	log   *zap.Logger
}

func NewRenderer(store Store, dir string, log *zap.Logger) *Renderer {
	return &Renderer{
		store: store,
		dir:   dir,
		cache: gocache.New(gocache.NoExpiration, gocache.NoExpiration),
		log:   log,
	}
}

func (r *Renderer) Render(ctx context.Context, name string, channel models.Channel, data map[string]interface{}) Rendered {
	out, err := r.renderTiers(ctx, name, channel, data)
	if err != nil {
		r.log.Warn("template rendering degraded to fallback",
			zap.String("template", name),
			zap.String("channel", string(channel)),
			zap.Error(err),
		)
		return fallbackRendered(name, data)
	}
	return out
}

func (r *Renderer) renderTiers(ctx context.Context, name string, channel models.Channel, data map[string]interface{}) (out Rendered, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("template render panic: %v", rec)
		}
	}()

	// Tier 1: persisted template.
	if r.store != nil {
		tmpl, storeErr := r.store.GetByName(ctx, name, channel)
		if storeErr != nil {
			// Store trouble is not a rendering failure: fall through.
			r.log.Warn("template store lookup failed",
				zap.String("template", name),
				zap.Error(storeErr),
			)
		} else if tmpl != nil {
			return r.renderParts(tmpl.SubjectTemplate, tmpl.BodyTemplate, channel, data), nil
		}
	}

	// Tier 2: filesystem template, cached after first load.
	if body, ok := r.loadFile(name); ok {
		subject := humanize(name)
		if b, found := builtins[name]; found {
			subject = b.Subject
		}
		return r.renderParts(subject, body, channel, data), nil
	}

	// Tier 3: builtin defaults.
	if b, ok := builtins[name]; ok {
		return r.renderParts(b.Subject, b.Body, channel, data), nil
	}

	return Rendered{}, fmt.Errorf("template %q not found in any tier", name)
}

func (r *Renderer) renderParts(subjectTmpl, bodyTmpl string, channel models.Channel, data map[string]interface{}) Rendered {
	subject := renderString(subjectTmpl, data)
	body := renderString(bodyTmpl, data)

	if channel == models.ChannelSMS {
		// SMS carries text only.
		return Rendered{Subject: subject, Text: htmlToText(body)}
	}
	return Rendered{
		Subject: subject,
		HTML:    body,
		Text:    htmlToText(body),
	}
}

// loadFile reads <dir>/<name>.html once and caches the content. A miss
// is cached too so absent files are not re-statted on every render.
func (r *Renderer) loadFile(name string) (string, bool) {
	key := "fs:" + name
	if v, found := r.cache.Get(key); found {
		s, ok := v.(string)
		return s, ok && s != ""
	}

	path := filepath.Join(r.dir, filepath.Base(name)+".html")
	content, err := os.ReadFile(path)
	if err != nil {
		r.cache.Set(key, "", gocache.NoExpiration)
		return "", false
	}

	r.cache.Set(key, string(content), gocache.NoExpiration)
	return string(content), true
}
