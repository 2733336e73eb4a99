package browser

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/playwright-community/playwright-go"
)

// Cookie is one entry of a cookie JSON export (the format browser
// extensions and playwright's storage state write). Boards use it to
// preload consent cookies so banners do not cover the pagination control.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

// LoadCookies reads a cookie file. An empty path yields no cookies.
func LoadCookies(path string) ([]playwright.OptionalCookie, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("parse cookies %s: %w", path, err)
	}

	out := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" || c.Domain == "" {
			continue
		}
		out = append(out, c.toPlaywright())
	}
	return out, nil
}

func (c Cookie) toPlaywright() playwright.OptionalCookie {
	path := c.Path
	if path == "" {
		path = "/"
	}
	pc := playwright.OptionalCookie{
		Name:   c.Name,
		Value:  c.Value,
		Domain: playwright.String(c.Domain),
		Path:   playwright.String(path),
	}
	if c.Expires > 0 {
		pc.Expires = playwright.Float(c.Expires)
	}
	if c.HTTPOnly {
		pc.HttpOnly = playwright.Bool(true)
	}
	if c.Secure {
		pc.Secure = playwright.Bool(true)
	}

	switch c.SameSite {
	case "Lax", "lax":
		pc.SameSite = playwright.SameSiteAttributeLax
	case "Strict", "strict":
		pc.SameSite = playwright.SameSiteAttributeStrict
	case "None", "no_restriction":
		pc.SameSite = playwright.SameSiteAttributeNone
	}
	return pc
}
