package protocol

import (
	"fmt"
)

// EntryPoint is the first message a client sends on a new connection.
// It is either a VersionProbe or a LoginAttempt.
type EntryPoint interface {
	Message
	entryPoint()
}

// VersionProbe asks whether the server accepts the given client version.
type VersionProbe struct{ Version string }

// LoginAttempt logs in an existing player, or signs up a new one when
// Signup is set.
type LoginAttempt struct {
	Username      string
	Password      string
	Signup        bool
	ClientVersion string
}

func (VersionProbe) entryPoint() {}
func (LoginAttempt) entryPoint() {}

func (VersionProbe) Family() Family { return FamilyEntryPoint }
func (LoginAttempt) Family() Family { return FamilyEntryPoint }

func (m VersionProbe) appendTo(b []byte) ([]byte, error) {
	return appendString(b, 1, m.Version), nil
}

func (m LoginAttempt) appendTo(b []byte) ([]byte, error) {
	var login []byte
	login = appendString(login, 1, m.Username)
	login = appendString(login, 2, m.Password)
	login = appendBool(login, 3, m.Signup)
	login = appendString(login, 4, m.ClientVersion)
	return appendMessage(b, 2, login), nil
}

// DecodeEntryPoint decodes an EntryPoint frame body.
func DecodeEntryPoint(body []byte) (EntryPoint, error) {
	f, err := oneField(FamilyEntryPoint, body)
	if err != nil {
		return nil, err
	}
	var m EntryPoint
	switch f.num {
	case 1:
		var v string
		v, err = f.string()
		m = VersionProbe{Version: v}
	case 2:
		m, err = decodeLogin(f)
	default:
		return nil, unknownVariant(FamilyEntryPoint, f)
	}
	if err != nil {
		return nil, withFamily(FamilyEntryPoint, err)
	}
	return m, nil
}

func decodeLogin(f field) (LoginAttempt, error) {
	var l LoginAttempt
	fields, err := f.message()
	if err != nil {
		return l, err
	}
	for _, sub := range fields {
		switch sub.num {
		case 1:
			l.Username, err = sub.string()
		case 2:
			l.Password, err = sub.string()
		case 3:
			l.Signup, err = sub.bool()
		case 4:
			l.ClientVersion, err = sub.string()
		}
		if err != nil {
			return l, fmt.Errorf("login attempt: %w", err)
		}
	}
	return l, nil
}

// EntryResponse is the server's single reply to an EntryPoint.
type EntryResponse interface {
	Message
	entryResponse()
}

// VersionAccepted answers a VersionProbe with the server version.
type VersionAccepted struct{ Version string }

// Motd accepts a login and carries the message of the day.
type Motd struct{ Text string }

// EntryError rejects a probe or login attempt.
type EntryError struct{ Msg string }

func (VersionAccepted) entryResponse() {}
func (Motd) entryResponse()            {}
func (EntryError) entryResponse()      {}

func (VersionAccepted) Family() Family { return FamilyEntryResponse }
func (Motd) Family() Family            { return FamilyEntryResponse }
func (EntryError) Family() Family      { return FamilyEntryResponse }

func (m VersionAccepted) appendTo(b []byte) ([]byte, error) { return appendString(b, 1, m.Version), nil }
func (m Motd) appendTo(b []byte) ([]byte, error)            { return appendString(b, 2, m.Text), nil }
func (m EntryError) appendTo(b []byte) ([]byte, error)      { return appendString(b, 3, m.Msg), nil }

// DecodeEntryResponse decodes an EntryResponse frame body.
func DecodeEntryResponse(body []byte) (EntryResponse, error) {
	f, err := oneField(FamilyEntryResponse, body)
	if err != nil {
		return nil, err
	}
	if f.num < 1 || f.num > 3 {
		return nil, unknownVariant(FamilyEntryResponse, f)
	}
	s, err := f.string()
	if err != nil {
		return nil, withFamily(FamilyEntryResponse, err)
	}
	switch f.num {
	case 1:
		return VersionAccepted{Version: s}, nil
	case 2:
		return Motd{Text: s}, nil
	default:
		return EntryError{Msg: s}, nil
	}
}
