package wikimedia

import (
	"strings"
)

var licenseURLs = map[string]string{
	"cc by-sa 4.0":  "https://creativecommons.org/licenses/by-sa/4.0/",
	"cc by-sa 3.0":  "https://creativecommons.org/licenses/by-sa/3.0/",
	"cc by-sa 2.0":  "https://creativecommons.org/licenses/by-sa/2.0/",
	"cc by-sa":      "https://creativecommons.org/licenses/by-sa/4.0/",
	"cc by 4.0":     "https://creativecommons.org/licenses/by/4.0/",
	"cc by 3.0":     "https://creativecommons.org/licenses/by/3.0/",
	"cc by 2.0":     "https://creativecommons.org/licenses/by/2.0/",
	"cc by":         "https://creativecommons.org/licenses/by/4.0/",
	"cc0":           "https://creativecommons.org/publicdomain/zero/1.0/",
	"public domain": "https://creativecommons.org/publicdomain/mark/1.0/",
}

// LicenseURL returns the deed URL of a Creative Commons license name, or ""
// when the license is not recognised.
func LicenseURL(license string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(license)), " ")
	return licenseURLs[normalized]
}

func credits(img *Image) (artist, license string) {
	artist, license = img.ArtistName, img.License
	if artist == "" {
		artist = "Unknown author"
	}
	if license == "" {
		license = defaultLicense
	}
	return artist, license
}

// Attribution renders an HTML credit line, linking the license when known.
func Attribution(img *Image) string {
	artist, license := credits(img)
	if u := LicenseURL(license); u != "" {
		license = `<a href="` + u + `" target="_blank" rel="noopener noreferrer">` + license + `</a>`
	}
	return strings.Join([]string{artist, license, "via Wikimedia Commons"}, ", ")
}

// PlainAttribution renders a text-only credit line.
func PlainAttribution(img *Image) string {
	artist, license := credits(img)
	return artist + ", " + license + ", via Wikimedia Commons"
}
