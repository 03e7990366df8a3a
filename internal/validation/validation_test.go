package validation

import "testing"

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{name: "valid email", email: "test@example.com", wantErr: false},
		{name: "valid email with subdomain", email: "user@mail.example.com", wantErr: false},
		{name: "valid email with plus", email: "user+tag@example.com", wantErr: false},
		{name: "missing @", email: "testexample.com", wantErr: true},
		{name: "missing domain", email: "test@", wantErr: true},
		{name: "missing local part", email: "@example.com", wantErr: true},
		{name: "empty string", email: "", wantErr: true},
		{name: "spaces in email", email: "test @example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "valid password", password: "password123", wantErr: false},
		{name: "password exactly 8 characters", password: "pass1234", wantErr: false},
		{name: "password too short", password: "pass123", wantErr: true},
		{name: "empty password", password: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid username", input: "emma", wantErr: false},
		{name: "username with space", input: "Emma Smith", wantErr: false},
		{name: "empty username", input: "", wantErr: true},
		{name: "username too short", input: "e", wantErr: true},
		{name: "whitespace only", input: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUsername(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateQuestType(t *testing.T) {
	tests := []struct {
		name      string
		questType string
		wantErr   bool
	}{
		{name: "reading", questType: "reading", wantErr: false},
		{name: "drawing", questType: "drawing", wantErr: false},
		{name: "homework", questType: "homework", wantErr: false},
		{name: "chores", questType: "chores", wantErr: false},
		{name: "exercise", questType: "exercise", wantErr: false},
		{name: "music", questType: "music", wantErr: false},
		{name: "custom", questType: "custom", wantErr: false},
		{name: "unknown type", questType: "gaming", wantErr: true},
		{name: "empty type", questType: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuestType(tt.questType)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateQuestType(%q) error = %v, wantErr %v", tt.questType, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTokens(t *testing.T) {
	tests := []struct {
		name    string
		tokens  int
		wantErr bool
	}{
		{name: "valid amount", tokens: 25, wantErr: false},
		{name: "one token", tokens: 1, wantErr: false},
		{name: "zero tokens", tokens: 0, wantErr: true},
		{name: "negative tokens", tokens: -5, wantErr: true},
		{name: "over cap", tokens: 10001, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTokens(tt.tokens)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTokens(%d) error = %v, wantErr %v", tt.tokens, err, tt.wantErr)
			}
		})
	}
}

func TestValidateInviteCode(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{name: "valid code", code: "A3F9K2PQ", wantErr: false},
		{name: "all digits", code: "12345678", wantErr: false},
		{name: "lowercase", code: "a3f9k2pq", wantErr: true},
		{name: "too short", code: "A3F9K2P", wantErr: true},
		{name: "too long", code: "A3F9K2PQX", wantErr: true},
		{name: "empty", code: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInviteCode(tt.code)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateInviteCode(%q) error = %v, wantErr %v", tt.code, err, tt.wantErr)
			}
		})
	}
}
