package capacitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIdentifier(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Demo", "demo"},
		{"My App", "myapp"},
		{"Web-2-APK!", "web2apk"},
		{"Café App", "cafeapp"},
		{"ÜberTool", "ubertool"},
		{"123", "123"},
		{"---", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeIdentifier(tc.in), "input %q", tc.in)
	}
}

func TestAppID(t *testing.T) {
	assert.Equal(t, "app.inful.demo", AppID("Demo"))
	// An empty identifier falls back rather than producing a trailing dot.
	assert.Equal(t, "app.inful.webapp", AppID("!!!"))
}

func TestArtifactFilename(t *testing.T) {
	assert.Equal(t, "Demo_v2.0.0.apk", ArtifactFilename("Demo", "2.0.0"))
	assert.Equal(t, "My_App_v1.0.0.apk", ArtifactFilename("My App", "1.0.0"))
	assert.Equal(t, "a_b_v3.1.4.apk", ArtifactFilename("a/b", "3.1.4"))
}
