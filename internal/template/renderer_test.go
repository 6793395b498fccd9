package template

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"NotiFlow/internal/models"
)

type fakeStore struct {
	tmpl *models.Template
	err  error
}

func (f *fakeStore) GetByName(_ context.Context, _ string, _ models.Channel) (*models.Template, error) {
	return f.tmpl, f.err
}

func TestRenderStoreTierWins(t *testing.T) {
	t.Parallel()

	store := &fakeStore{tmpl: &models.Template{
		Name:            "welcome",
		Channel:         models.ChannelEmail,
		SubjectTemplate: "Hello {{name}}",
		BodyTemplate:    "<p>DB says hi to {{name}}</p>",
	}}
	r := NewRenderer(store, t.TempDir(), zap.NewNop())

	out := r.Render(context.Background(), "welcome", models.ChannelEmail, map[string]interface{}{"name": "Ada"})

	assert.Equal(t, "Hello Ada", out.Subject)
	assert.Contains(t, out.HTML, "DB says hi to Ada")
	assert.Contains(t, out.Text, "DB says hi to Ada")
}

func TestRenderStoreErrorFallsThrough(t *testing.T) {
	t.Parallel()

	store := &fakeStore{err: errors.New("db down")}
	r := NewRenderer(store, t.TempDir(), zap.NewNop())

	out := r.Render(context.Background(), "welcome", models.ChannelEmail, map[string]interface{}{"name": "Ada"})

	// Builtin default still renders.
	assert.Contains(t, out.HTML, "Welcome, Ada!")
	assert.NotEmpty(t, out.Subject)
}

func TestRenderFilesystemTier(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	content := "<html><body><p>File template for {{name}}</p></body></html>"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "launch-note.html"), []byte(content), 0o644))

	r := NewRenderer(nil, dir, zap.NewNop())

	out := r.Render(context.Background(), "launch-note", models.ChannelEmail, map[string]interface{}{"name": "Ada"})
	assert.Contains(t, out.HTML, "File template for Ada")
	assert.Equal(t, "Launch Note", out.Subject)

	// Second render comes from the cache: delete the file and re-render.
	require.NoError(t, os.Remove(filepath.Join(dir, "launch-note.html")))
	again := r.Render(context.Background(), "launch-note", models.ChannelEmail, map[string]interface{}{"name": "Ada"})
	assert.Equal(t, out.HTML, again.HTML)
}

func TestRenderBuiltinTier(t *testing.T) {
	t.Parallel()

	r := NewRenderer(nil, t.TempDir(), zap.NewNop())

	out := r.Render(context.Background(), "otp", models.ChannelEmail, map[string]interface{}{
		"code":      "123456",
		"expiresIn": 10,
	})
	assert.Contains(t, out.HTML, "123456")
	assert.Contains(t, out.HTML, "10 minutes")
}

func TestRenderFallbackCompleteness(t *testing.T) {
	t.Parallel()

	r := NewRenderer(nil, t.TempDir(), zap.NewNop())

	// Unknown everywhere: must still return a non-empty pair.
	out := r.Render(context.Background(), "no-such-template", models.ChannelEmail, map[string]interface{}{
		"name":        "Ada",
		"amount":      42.5,
		"ticketCount": 2,
	})

	assert.NotEmpty(t, out.HTML)
	assert.NotEmpty(t, out.Text)
	assert.NotEmpty(t, out.Subject)
	assert.Contains(t, out.HTML, "Ada")
	assert.Contains(t, out.HTML, "42.5")
}

func TestRenderIdempotent(t *testing.T) {
	t.Parallel()

	r := NewRenderer(nil, t.TempDir(), zap.NewNop())
	data := map[string]interface{}{"name": "Ada", "plan": "pro"}

	first := r.Render(context.Background(), "welcome", models.ChannelEmail, data)
	second := r.Render(context.Background(), "welcome", models.ChannelEmail, data)

	assert.Equal(t, first, second)
}

func TestRenderSMSIsTextOnly(t *testing.T) {
	t.Parallel()

	store := &fakeStore{tmpl: &models.Template{
		Name:            "otp",
		Channel:         models.ChannelSMS,
		SubjectTemplate: "code",
		BodyTemplate:    "Your code is {{code}}",
	}}
	r := NewRenderer(store, t.TempDir(), zap.NewNop())

	out := r.Render(context.Background(), "otp", models.ChannelSMS, map[string]interface{}{"code": "9876"})
	assert.Empty(t, out.HTML)
	assert.Equal(t, "Your code is 9876", out.Text)
}
