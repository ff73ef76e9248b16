package mediaprobe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFFprobe_Resolve(t *testing.T) {
	p := New("")
	p.Mount("/media/presets", "/srv/catalog/audio")
	p.Mount("/media/uploads/", "/srv/data/uploads")

	tests := []struct {
		name string
		url  string
		want string
		ok   bool
	}{
		{name: "preset", url: "/media/presets/chime.mp3", want: "/srv/catalog/audio/chime.mp3", ok: true},
		{name: "upload", url: "/media/uploads/abc_bell.mp3", want: "/srv/data/uploads/abc_bell.mp3", ok: true},
		{name: "unmounted", url: "/static/app.js", ok: false},
		{name: "traversal", url: "/media/presets/../secret", ok: false},
		{name: "bare prefix", url: "/media/presets/", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.resolve(tt.url)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
