package avatar

import (
	"fmt"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/avatar-redirect/internal/model"
)

func TestDefaultIndex(t *testing.T) {
	tests := []struct {
		name string
		user model.User
		want int
	}{
		{"migrated account with tiny id", model.User{ID: 1, Discriminator: 0}, 0},
		{"legacy discriminator", model.User{ID: 1234, Discriminator: 7}, 2},
		{"legacy discriminator ignores id", model.User{ID: 175928847299117063, Discriminator: 7}, 2},
		{"legacy discriminator 1337", model.User{ID: 1, Discriminator: 1337}, 2},
		{"legacy discriminator multiple of five", model.User{ID: 1, Discriminator: 1335}, 0},
		{"migrated account uses timestamp bits", model.User{ID: 175928847299117063}, 2},
		{"migrated account, last bucket", model.User{ID: 80351110224678912}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultIndex(tt.user))
		})
	}
}

func TestDefaultIndexMatchesFormula(t *testing.T) {
	for _, id := range []uint64{1, 4194304, 175928847299117063, 1 << 63} {
		u := model.User{ID: snowflake.ID(id)}
		assert.Equal(t, int((id>>22)%6), DefaultIndex(u), "id %d", id)
	}
}

func TestURL(t *testing.T) {
	tests := []struct {
		name   string
		user   model.User
		format Format
		size   int16
		want   string
	}{
		{
			name:   "animated avatar defaults to gif",
			user:   model.User{ID: 42, Avatar: "a_abc"},
			format: FormatAuto,
			size:   256,
			want:   "https://cdn.discordapp.com/avatars/42/a_abc.gif?size=256",
		},
		{
			name:   "static avatar defaults to png",
			user:   model.User{ID: 42, Avatar: "deadbeef"},
			format: FormatAuto,
			size:   512,
			want:   "https://cdn.discordapp.com/avatars/42/deadbeef.png?size=512",
		},
		{
			name:   "explicit format overrides",
			user:   model.User{ID: 42, Avatar: "deadbeef"},
			format: FormatWebP,
			size:   128,
			want:   "https://cdn.discordapp.com/avatars/42/deadbeef.webp?size=128",
		},
		{
			name:   "explicit png on animated avatar",
			user:   model.User{ID: 42, Avatar: "a_abc"},
			format: FormatPNG,
			size:   64,
			want:   "https://cdn.discordapp.com/avatars/42/a_abc.png?size=64",
		},
		{
			name:   "jpg",
			user:   model.User{ID: 42, Avatar: "deadbeef"},
			format: FormatJPG,
			size:   16,
			want:   "https://cdn.discordapp.com/avatars/42/deadbeef.jpg?size=16",
		},
		{
			name:   "no avatar ignores format and size",
			user:   model.User{ID: 1, Discriminator: 7},
			format: FormatGIF,
			size:   4096,
			want:   "https://cdn.discordapp.com/embed/avatars/2.png",
		},
		{
			name:   "no avatar on migrated account",
			user:   model.User{ID: 80351110224678912},
			format: FormatAuto,
			size:   512,
			want:   "https://cdn.discordapp.com/embed/avatars/5.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, URL(tt.user, tt.format, tt.size))
		})
	}
}

func TestURLDefaultAvatarForEveryFormatAndSize(t *testing.T) {
	u := model.User{ID: 175928847299117063}
	want := fmt.Sprintf("https://cdn.discordapp.com/embed/avatars/%d.png", DefaultIndex(u))

	for _, f := range []Format{FormatAuto, FormatPNG, FormatJPG, FormatWebP, FormatGIF} {
		for _, size := range AllowedSizes {
			assert.Equal(t, want, URL(u, f, size))
		}
	}
}

func TestIsAllowedSize(t *testing.T) {
	for _, size := range AllowedSizes {
		assert.True(t, IsAllowedSize(size), "size %d", size)
	}
	for _, size := range []int16{-512, 0, 1, 15, 100, 500, 513, 8192} {
		assert.False(t, IsAllowedSize(size), "size %d", size)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"png", FormatPNG},
		{"jpg", FormatJPG},
		{"jpeg", FormatJPG},
		{"webp", FormatWebP},
		{"gif", FormatGIF},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "PNG", "bmp", "svg", "jpe"} {
		_, err := ParseFormat(bad)
		assert.Error(t, err, "format %q", bad)
	}
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "png", FormatPNG.String())
	assert.Equal(t, "jpg", FormatJPG.String())
	assert.Equal(t, "webp", FormatWebP.String())
	assert.Equal(t, "gif", FormatGIF.String())
	assert.Equal(t, "auto", FormatAuto.String())
}
