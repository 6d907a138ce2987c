package app_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"fitlog/internal/adapter/memory"
	"fitlog/internal/app"
	"fitlog/internal/domain"
	"fitlog/internal/gravatar"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newAvatarFixture(t *testing.T) (*app.AvatarService, *memory.DB, *domain.User) {
	t.Helper()
	db := memory.New()
	u, err := db.Create(context.Background(), domain.NewUser{Username: "alice", Email: "Alice@Example.com"})
	require.NoError(t, err)
	svc := app.NewAvatarService(db.NewAvatarStore(), db, 64, gravatar.Options{Enabled: true, DefaultImage: "identicon"})
	return svc, db, u
}

func TestAvatarUpload(t *testing.T) {
	ctx := context.Background()
	svc, db, u := newAvatarFixture(t)

	ref, err := svc.Upload(ctx, u.ID, "Me.PNG", bytes.NewReader(samplePNG(t, 120, 80)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "user_1_"), ref)

	got, err := db.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, ref, got.AvatarRef)
	assert.Equal(t, "/api/avatars/"+ref, svc.URL(got))

	rc, err := svc.Open(ctx, ref)
	require.NoError(t, err)
	defer rc.Close() //nolint:errcheck
	data, err := io.ReadAll(rc)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 64, img.Bounds().Dy())
}

func TestAvatarUpload_Rejects(t *testing.T) {
	ctx := context.Background()
	svc, db, u := newAvatarFixture(t)

	_, err := svc.Upload(ctx, u.ID, "me.bmp", bytes.NewReader(samplePNG(t, 4, 4)))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Upload(ctx, u.ID, "me.png", strings.NewReader("not an image"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, _ := db.GetByID(ctx, u.ID)
	assert.Empty(t, got.AvatarRef, "rejected uploads leave the profile untouched")
}

func TestAvatarUpload_RejectsOversizedDimensions(t *testing.T) {
	ctx := context.Background()
	svc, db, u := newAvatarFixture(t)

	for _, r := range []image.Rectangle{
		image.Rect(0, 0, app.MaxAvatarDimension+1, 1),
		image.Rect(0, 0, 1, app.MaxAvatarDimension+1),
	} {
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, image.NewGray(r)))
		require.Less(t, buf.Len(), app.MaxAvatarBytes)

		_, err := svc.Upload(ctx, u.ID, "huge.png", &buf)
		assert.ErrorIs(t, err, domain.ErrValidation, r.String())
	}

	_, err := svc.Upload(ctx, u.ID, "big.png", bytes.NewReader(make([]byte, app.MaxAvatarBytes+1)))
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, _ := db.GetByID(ctx, u.ID)
	assert.Empty(t, got.AvatarRef)
}

func TestAvatarUpload_AcceptsLimitDimension(t *testing.T) {
	svc, _, u := newAvatarFixture(t)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, app.MaxAvatarDimension, 2))))
	_, err := svc.Upload(context.Background(), u.ID, "wide.png", &buf)
	assert.NoError(t, err)
}

func TestAvatarOpen_BadRef(t *testing.T) {
	svc, _, _ := newAvatarFixture(t)
	for _, ref := range []string{"", "../etc/passwd", "user_1_x.png", "user_1_00000000-0000-0000-0000-000000000000.png"} {
		_, err := svc.Open(context.Background(), ref)
		assert.ErrorIs(t, err, domain.ErrNotFound, ref)
	}
}

func TestAvatarURL_GravatarFallback(t *testing.T) {
	svc, _, u := newAvatarFixture(t)
	url := svc.URL(u)
	assert.True(t, strings.HasPrefix(url, "https://www.gravatar.com/avatar/"), url)
	assert.Contains(t, url, "d=identicon")

	assert.Empty(t, svc.URL(&domain.User{}))
	assert.Empty(t, svc.URL(nil))
}
