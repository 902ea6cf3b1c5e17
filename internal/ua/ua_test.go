package ua

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		name, raw, browser, device string
		bot                        bool
	}{
		{"chrome mac", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.6422.60 Safari/537.36", "Chrome", "Desktop", false},
		{"iphone safari", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1", "Safari", "Mobile", false},
		{"googlebot", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", "", "Bot", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.raw)
			if tc.browser != "" && got.Browser != tc.browser {
				t.Errorf("Browser = %q", got.Browser)
			}
			if got.Device != tc.device {
				t.Errorf("Device = %q", got.Device)
			}
			if got.IsBot != tc.bot {
				t.Errorf("IsBot = %v", got.IsBot)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if got := Parse(""); got.Device != "Other" || got.IsBot {
		t.Fatalf("got %+v", got)
	}
}
