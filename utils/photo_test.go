package utils_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/stockbot_backend/utils"
)

func TestDirectImageURL(t *testing.T) {
	fallback := "https://example.com/placeholder.png"

	cases := []struct {
		ref  string
		want string
	}{
		{"", fallback},
		{"   ", fallback},
		{"not a url", fallback},
		{
			"https://drive.google.com/file/d/1AbCdEfGhIjKlMnOpQrSt/view?usp=sharing",
			"https://drive.google.com/thumbnail?id=1AbCdEfGhIjKlMnOpQrSt&sz=w500",
		},
		{
			"https://drive.google.com/open?id=1AbCdEfGhIjKlMnOpQrSt",
			"https://drive.google.com/thumbnail?id=1AbCdEfGhIjKlMnOpQrSt&sz=w500",
		},
		{
			"1AbCdEfGhIjKlMnOpQrStUv",
			"https://drive.google.com/thumbnail?id=1AbCdEfGhIjKlMnOpQrStUv&sz=w500",
		},
		{
			"https://storage.googleapis.com/bucket/items/photo.jpg",
			"https://storage.googleapis.com/bucket/items/photo.jpg",
		},
	}

	for _, tc := range cases {
		if got := utils.DirectImageURL(tc.ref, fallback); got != tc.want {
			t.Errorf("DirectImageURL(%q) = %q, want %q", tc.ref, got, tc.want)
		}
	}
}
