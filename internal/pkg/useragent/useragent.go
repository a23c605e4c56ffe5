// Package useragent classifies the user agents that hit public profile pages.
package useragent

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

// Class is the coarse device class of a visitor.
type Class string

const (
	Desktop Class = "desktop"
	Mobile  Class = "mobile"
	Tablet  Class = "tablet"
	Bot     Class = "bot"
)

//go:embed crawlers.yml
var crawlerDatabase []byte

// Crawler is one known automated client.
type Crawler struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Regex    string `yaml:"regex"`
}

type compiledCrawler struct {
	Crawler
	re *pcre.Regexp
}

// Detector matches user agents against a crawler list.
type Detector struct {
	crawlers []compiledCrawler
}

// NewDetector compiles a YAML crawler list.
func NewDetector(data []byte) (*Detector, error) {
	var entries []Crawler
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse crawler list: %w", err)
	}

	d := &Detector{crawlers: make([]compiledCrawler, 0, len(entries))}
	for _, entry := range entries {
		if entry.Regex == "" {
			return nil, fmt.Errorf("crawler %q has no regex", entry.Name)
		}
		re, err := pcre.Compile("(?i)" + entry.Regex)
		if err != nil {
			return nil, fmt.Errorf("failed to compile crawler %q: %w", entry.Name, err)
		}
		d.crawlers = append(d.crawlers, compiledCrawler{Crawler: entry, re: re})
	}
	return d, nil
}

var (
	defaultDetector *Detector
	defaultOnce     sync.Once
)

// Default returns the detector built from the embedded crawler list.
func Default() *Detector {
	defaultOnce.Do(func() {
		d, err := NewDetector(crawlerDatabase)
		if err != nil {
			panic(err)
		}
		defaultDetector = d
	})
	return defaultDetector
}

// Crawler returns the first crawler matching userAgent.
func (d *Detector) Crawler(userAgent string) (Crawler, bool) {
	ua := strings.TrimSpace(userAgent)
	if ua == "" {
		return Crawler{}, false
	}
	for _, c := range d.crawlers {
		if c.re.MatchString(ua) {
			return c.Crawler, true
		}
	}
	return Crawler{}, false
}

// Classify returns the device class of userAgent. Unrecognised agents are desktops.
func (d *Detector) Classify(userAgent string) Class {
	if _, ok := d.Crawler(userAgent); ok {
		return Bot
	}

	ua := strings.ToLower(userAgent)

	// Tablets often also say "mobile".
	if strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet") ||
		(strings.Contains(ua, "android") && !strings.Contains(ua, "mobile")) {
		return Tablet
	}
	if strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone") ||
		strings.Contains(ua, "ipod") || strings.Contains(ua, "android") ||
		strings.Contains(ua, "windows phone") || strings.Contains(ua, "blackberry") {
		return Mobile
	}
	return Desktop
}

// IsCrawler reports whether userAgent belongs to a known automated client.
func IsCrawler(userAgent string) bool {
	_, ok := Default().Crawler(userAgent)
	return ok
}

// Classify uses the default detector.
func Classify(userAgent string) Class {
	return Default().Classify(userAgent)
}
