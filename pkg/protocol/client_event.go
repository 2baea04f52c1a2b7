package protocol

// ClientEvent is a command sent by a logged in client.
type ClientEvent interface {
	Message
	clientEvent()
}

type (
	// ClientDisconnect announces that the client is leaving.
	ClientDisconnect struct{}
	// ClientKeepAlive answers a server keepalive with the client's clock
	// in epoch seconds.
	ClientKeepAlive struct{ Time uint64 }
	// Step walks one step forward.
	Step struct{}
	// OpenInv requests the player's inventory.
	OpenInv struct{}
	// DropItem destroys the named item.
	DropItem struct{ Name string }
	// InspectItem requests the details of the named item.
	InspectItem struct{ Name string }
	// Attack is reserved for combat.
	Attack struct{}
	// TryFlee is reserved for combat.
	TryFlee struct{}
	// ClientError reports a client side failure.
	ClientError struct{ ErrorData }
)

func (ClientDisconnect) clientEvent() {}
func (ClientKeepAlive) clientEvent()  {}
func (Step) clientEvent()             {}
func (OpenInv) clientEvent()          {}
func (DropItem) clientEvent()         {}
func (InspectItem) clientEvent()      {}
func (Attack) clientEvent()           {}
func (TryFlee) clientEvent()          {}
func (ClientError) clientEvent()      {}

func (ClientDisconnect) Family() Family { return FamilyClientEvent }
func (ClientKeepAlive) Family() Family  { return FamilyClientEvent }
func (Step) Family() Family             { return FamilyClientEvent }
func (OpenInv) Family() Family          { return FamilyClientEvent }
func (DropItem) Family() Family         { return FamilyClientEvent }
func (InspectItem) Family() Family      { return FamilyClientEvent }
func (Attack) Family() Family           { return FamilyClientEvent }
func (TryFlee) Family() Family          { return FamilyClientEvent }
func (ClientError) Family() Family      { return FamilyClientEvent }

func (ClientDisconnect) appendTo(b []byte) ([]byte, error)  { return appendUnit(b, 1), nil }
func (m ClientKeepAlive) appendTo(b []byte) ([]byte, error) { return appendUint(b, 2, m.Time), nil }
func (Step) appendTo(b []byte) ([]byte, error)              { return appendUnit(b, 3), nil }
func (OpenInv) appendTo(b []byte) ([]byte, error)           { return appendUnit(b, 4), nil }
func (m DropItem) appendTo(b []byte) ([]byte, error)        { return appendString(b, 5, m.Name), nil }
func (m InspectItem) appendTo(b []byte) ([]byte, error)     { return appendString(b, 6, m.Name), nil }
func (Attack) appendTo(b []byte) ([]byte, error)            { return appendUnit(b, 7), nil }
func (TryFlee) appendTo(b []byte) ([]byte, error)           { return appendUnit(b, 8), nil }
func (m ClientError) appendTo(b []byte) ([]byte, error) {
	return appendMessage(b, 9, m.ErrorData.appendTo(nil)), nil
}

// DecodeClientEvent decodes a ClientEvent frame body.
func DecodeClientEvent(body []byte) (ClientEvent, error) {
	f, err := oneField(FamilyClientEvent, body)
	if err != nil {
		return nil, err
	}
	var m ClientEvent
	switch f.num {
	case 1:
		m, err = ClientDisconnect{}, f.unit()
	case 2:
		var t uint64
		t, err = f.uint64()
		m = ClientKeepAlive{Time: t}
	case 3:
		m, err = Step{}, f.unit()
	case 4:
		m, err = OpenInv{}, f.unit()
	case 5:
		var name string
		name, err = f.string()
		m = DropItem{Name: name}
	case 6:
		var name string
		name, err = f.string()
		m = InspectItem{Name: name}
	case 7:
		m, err = Attack{}, f.unit()
	case 8:
		m, err = TryFlee{}, f.unit()
	case 9:
		var e ErrorData
		e, err = decodeErrorData(f)
		m = ClientError{e}
	default:
		return nil, unknownVariant(FamilyClientEvent, f)
	}
	if err != nil {
		return nil, withFamily(FamilyClientEvent, err)
	}
	return m, nil
}
