package useragent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentlinker/internal/pkg/useragent"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		want      useragent.Class
	}{
		{"chrome on windows", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36", useragent.Desktop},
		{"safari on iphone", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1", useragent.Mobile},
		{"instagram in-app browser", "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Version/4.0 Chrome/119.0 Mobile Safari/537.36 Instagram 309.0.0.40.113 Android", useragent.Mobile},
		{"ipad", "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1", useragent.Tablet},
		{"android tablet", "Mozilla/5.0 (Linux; Android 13; SM-X700) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0 Safari/537.36", useragent.Tablet},
		{"facebook preview", "facebookexternalhit/1.1 (+http://www.facebook.com/externalhit_uatext.php)", useragent.Bot},
		{"whatsapp preview", "WhatsApp/2.23.20.0", useragent.Bot},
		{"googlebot", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", useragent.Bot},
		{"curl", "curl/8.4.0", useragent.Bot},
		{"headless chrome", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) HeadlessChrome/120.0.0.0 Safari/537.36", useragent.Bot},
		{"empty", "", useragent.Desktop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, useragent.Classify(tt.userAgent))
		})
	}
}

func TestCrawlerNames(t *testing.T) {
	crawler, ok := useragent.Default().Crawler("Twitterbot/1.0")
	require.True(t, ok)
	assert.Equal(t, "X/Twitter", crawler.Name)
	assert.Equal(t, "Social Preview", crawler.Category)

	assert.False(t, useragent.IsCrawler("Mozilla/5.0 (Linux; Android 12; CUBOT X30) Mobile Safari/537.36"))
}

func TestNewDetectorRejectsBadLists(t *testing.T) {
	_, err := useragent.NewDetector([]byte("- name: Broken\n  regex: ''\n"))
	assert.Error(t, err)

	_, err = useragent.NewDetector([]byte("- name: Unbalanced\n  regex: 'foo('\n"))
	assert.Error(t, err)

	_, err = useragent.NewDetector([]byte("not: [a list"))
	assert.Error(t, err)
}
