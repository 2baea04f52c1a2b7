package server

// Credential limits for signup.
const (
	MinUsernameLen = 3
	MaxUsernameLen = 16
	MinPasswordLen = 4
	MaxPasswordLen = 32
)

// ValidateUsername returns why username cannot be registered, or "".
func ValidateUsername(username string) string {
	if len(username) < MinUsernameLen || len(username) > MaxUsernameLen {
		return "Usernames must be between 3 and 16 characters long."
	}
	for i := 0; i < len(username); i++ {
		c := username[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			return "Usernames may only contain letters, numbers and underscores."
		}
	}
	return ""
}

// ValidatePassword returns why password cannot be used, or "".
func ValidatePassword(password string) string {
	if len(password) < MinPasswordLen || len(password) > MaxPasswordLen {
		return "Passwords must be between 4 and 32 characters long."
	}
	for i := 0; i < len(password); i++ {
		c := password[i]
		if c <= ' ' || c > '~' || c == '"' || c == '\'' {
			return "Passwords may not contain spaces, quotes or unprintable characters."
		}
	}
	return ""
}
