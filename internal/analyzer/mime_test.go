package analyzer

import "testing"

func TestMIMETypeFor(t *testing.T) {
	tests := []struct {
		filename string
		want     string
		ok       bool
	}{
		{"a.png", "image/png", true},
		{"a.JPG", "image/jpeg", true},
		{"dir/a.jpeg", "image/jpeg", true},
		{"a.gif", "image/gif", true},
		{"a.webp", "image/webp", true},
		{"a.bmp", "", false},
		{"noext", "", false},
		{"archive.png.zip", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.filename, func(t *testing.T) {
			got, ok := MIMETypeFor(tc.filename)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("MIMETypeFor(%q) = %q, %v; want %q, %v", tc.filename, got, ok, tc.want, tc.ok)
			}
		})
	}
}
