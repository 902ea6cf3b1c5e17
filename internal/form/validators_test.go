package form

import (
	"strings"
	"testing"
)

func TestValidators(t *testing.T) {
	cases := []struct {
		name string
		fn   Validator
		in   string
		want string
	}{
		{"email empty", Email, "", MsgEmailRequired},
		{"email no at", Email, "user.example.com", MsgEmailFormat},
		{"email no tld", Email, "user@example", MsgEmailFormat},
		{"email space", Email, "us er@example.com", MsgEmailFormat},
		{"email ok", Email, "user@example.com", ""},
		{"login email empty", LoginEmail, "", MsgEmailFormat},
		{"login email ok", LoginEmail, "a@b.co", ""},
		{"password empty", Password, "", MsgPasswordRequired},
		{"password short", Password, "Aa1!", MsgPasswordRule},
		{"password long", Password, "Aa1!" + strings.Repeat("a", 17), MsgPasswordRule},
		{"password no upper", Password, "abcdef1!", MsgPasswordRule},
		{"password no lower", Password, "ABCDEF1!", MsgPasswordRule},
		{"password no digit", Password, "Abcdefg!", MsgPasswordRule},
		{"password no special", Password, "Abcdefg1", MsgPasswordRule},
		{"password foreign special", Password, "Abcdef1#", MsgPasswordRule},
		{"password ok min", Password, "Abcdef1!", ""},
		{"password ok max", Password, "Abcdef1!" + strings.Repeat("z", 12), ""},
		{"login password empty", LoginPassword, "", MsgPasswordRequired},
		{"login password short", LoginPassword, "1234567", MsgPasswordShort},
		{"login password long", LoginPassword, strings.Repeat("x", 21), MsgPasswordLong},
		{"login password ok", LoginPassword, "anything", ""},
		{"nickname empty", Nickname, "", MsgNicknameRequired},
		{"nickname space", Nickname, "a b", MsgNicknameSpace},
		{"nickname tab", Nickname, "a\tb", MsgNicknameSpace},
		{"nickname long", Nickname, "abcdefghijk", MsgNicknameTooLong},
		{"nickname ten hangul", Nickname, "가나다라마바사아자차", ""},
		{"title empty", PostTitle, "", MsgTitleRequired},
		{"title 26 hangul", PostTitle, strings.Repeat("가", 26), ""},
		{"title 27", PostTitle, strings.Repeat("a", 27), MsgTitleTooLong},
		{"content empty", PostContent, "", MsgContentRequired},
		{"content ok", PostContent, "hi", ""},
		{"comment blank", Comment, "  \n", MsgCommentRequired},
		{"comment ok", Comment, "좋아요", ""},
		{"profile image missing", ProfileImage, "", MsgProfileImageReq},
		{"profile image ok", ProfileImage, "me.png", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.fn(tc.in, nil); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

// Whitespace wins over length even when both apply.
func TestNicknameWhitespacePrecedence(t *testing.T) {
	for _, nick := range []string{"hello world!!", "a very long nickname", " leading", "trailing "} {
		if got := Nickname(nick, nil); got != MsgNicknameSpace {
			t.Errorf("%q: got %q", nick, got)
		}
	}
}

func TestPasswordPairValid(t *testing.T) {
	confirm := MatchField("password")
	for _, pw := range []string{"Abcdef1!", "Zz9@Zz9@", "Passw0rd$Passw0rd$", "aB3&aB3&aB3&"} {
		all := Values{"password": pw, "confirm_password": pw}
		if msg := Password(pw, all); msg != "" {
			t.Errorf("%q: password error %q", pw, msg)
		}
		if msg := confirm(pw, all); msg != "" {
			t.Errorf("%q: confirm error %q", pw, msg)
		}
	}
}

func TestConfirmPassword(t *testing.T) {
	confirm := MatchField("password")
	if got := confirm("", Values{"password": "x"}); got != MsgConfirmRequired {
		t.Fatalf("empty: %q", got)
	}
	if got := confirm("Abcdef1?", Values{"password": "Abcdef1!"}); got != MsgConfirmMismatch {
		t.Fatalf("mismatch: %q", got)
	}
}

func TestRegistryBuild(t *testing.T) {
	reg := DefaultRegistry()
	v, err := reg.Build("confirm_password", FieldDef{Name: "confirm", Match: "new_password"})
	if err != nil {
		t.Fatal(err)
	}
	if got := v("Abcdef1!", Values{"new_password": "Abcdef1!"}); got != "" {
		t.Fatalf("match field ignored: %q", got)
	}
	if _, err := reg.Build("nope", FieldDef{Name: "x"}); err == nil {
		t.Fatal("expected unknown validator error")
	}

	custom := NewRegistry()
	custom.Register("always", func(string, Values) string { return "no" })
	if !custom.Has("always") || custom.Has("email") {
		t.Fatal("custom registry leaked or lost entries")
	}
}
