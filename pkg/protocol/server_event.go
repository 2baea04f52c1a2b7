package protocol

import "fmt"

// ServerEvent is a message sent by the server to a logged in client.
type ServerEvent interface {
	Message
	serverEvent()
}

type (
	// ServerDisconnect tells the client the session is over.
	ServerDisconnect struct{}
	// ServerKeepAlive carries the server clock in epoch seconds and expects
	// a ClientKeepAlive in reply.
	ServerKeepAlive struct{ Time uint64 }
	// Notice is free text for the client's output panel.
	Notice struct{ Text string }
	// GainExp reports experience gained on a step.
	GainExp struct{ Amount uint32 }
	// FindItem reports an item found on a step.
	FindItem struct{ Item ItemView }
	// Encounter reports an event of a combat encounter.
	Encounter struct{ Data EncounterData }
	// Update carries the current player state.
	Update struct{ Player PlayerSnapshot }
	// Inventory lists the player's items.
	Inventory struct{ Items []ItemView }
	// ShowItem answers an InspectItem.
	ShowItem struct{ Item ItemView }
	// ServerError reports a failure; Disconnect ends the session.
	ServerError struct{ ErrorData }
)

func (ServerDisconnect) serverEvent() {}
func (ServerKeepAlive) serverEvent()  {}
func (Notice) serverEvent()           {}
func (GainExp) serverEvent()          {}
func (FindItem) serverEvent()         {}
func (Encounter) serverEvent()        {}
func (Update) serverEvent()           {}
func (Inventory) serverEvent()        {}
func (ShowItem) serverEvent()         {}
func (ServerError) serverEvent()      {}

func (ServerDisconnect) Family() Family { return FamilyServerEvent }
func (ServerKeepAlive) Family() Family  { return FamilyServerEvent }
func (Notice) Family() Family           { return FamilyServerEvent }
func (GainExp) Family() Family          { return FamilyServerEvent }
func (FindItem) Family() Family         { return FamilyServerEvent }
func (Encounter) Family() Family        { return FamilyServerEvent }
func (Update) Family() Family           { return FamilyServerEvent }
func (Inventory) Family() Family        { return FamilyServerEvent }
func (ShowItem) Family() Family         { return FamilyServerEvent }
func (ServerError) Family() Family      { return FamilyServerEvent }

func (ServerDisconnect) appendTo(b []byte) ([]byte, error)  { return appendUnit(b, 1), nil }
func (m ServerKeepAlive) appendTo(b []byte) ([]byte, error) { return appendUint(b, 2, m.Time), nil }
func (m Notice) appendTo(b []byte) ([]byte, error)          { return appendString(b, 3, m.Text), nil }
func (m GainExp) appendTo(b []byte) ([]byte, error)         { return appendUint(b, 4, uint64(m.Amount)), nil }

func (m FindItem) appendTo(b []byte) ([]byte, error) {
	item, err := m.Item.appendTo(nil)
	if err != nil {
		return nil, err
	}
	return appendMessage(b, 5, item), nil
}

func (m Encounter) appendTo(b []byte) ([]byte, error) {
	data, err := m.Data.appendTo(nil)
	if err != nil {
		return nil, err
	}
	return appendMessage(b, 6, data), nil
}

func (m Update) appendTo(b []byte) ([]byte, error) {
	return appendMessage(b, 7, m.Player.appendTo(nil)), nil
}

func (m Inventory) appendTo(b []byte) ([]byte, error) {
	var list []byte
	for _, it := range m.Items {
		item, err := it.appendTo(nil)
		if err != nil {
			return nil, err
		}
		list = appendMessage(list, 1, item)
	}
	return appendMessage(b, 8, list), nil
}

func (m ShowItem) appendTo(b []byte) ([]byte, error) {
	item, err := m.Item.appendTo(nil)
	if err != nil {
		return nil, err
	}
	return appendMessage(b, 9, item), nil
}

func (m ServerError) appendTo(b []byte) ([]byte, error) {
	return appendMessage(b, 10, m.ErrorData.appendTo(nil)), nil
}

// DecodeServerEvent decodes a ServerEvent frame body.
func DecodeServerEvent(body []byte) (ServerEvent, error) {
	f, err := oneField(FamilyServerEvent, body)
	if err != nil {
		return nil, err
	}
	var m ServerEvent
	switch f.num {
	case 1:
		m, err = ServerDisconnect{}, f.unit()
	case 2:
		var t uint64
		t, err = f.uint64()
		m = ServerKeepAlive{Time: t}
	case 3:
		var s string
		s, err = f.string()
		m = Notice{Text: s}
	case 4:
		var n uint32
		n, err = f.uint32()
		m = GainExp{Amount: n}
	case 5:
		var v ItemView
		v, err = decodeItemView(f)
		m = FindItem{Item: v}
	case 6:
		var d EncounterData
		d, err = decodeEncounter(f)
		m = Encounter{Data: d}
	case 7:
		var s PlayerSnapshot
		s, err = decodeSnapshot(f)
		m = Update{Player: s}
	case 8:
		var items []ItemView
		items, err = decodeInventory(f)
		m = Inventory{Items: items}
	case 9:
		var v ItemView
		v, err = decodeItemView(f)
		m = ShowItem{Item: v}
	case 10:
		var e ErrorData
		e, err = decodeErrorData(f)
		m = ServerError{e}
	default:
		return nil, unknownVariant(FamilyServerEvent, f)
	}
	if err != nil {
		return nil, withFamily(FamilyServerEvent, err)
	}
	return m, nil
}

func decodeInventory(f field) ([]ItemView, error) {
	fields, err := f.message()
	if err != nil {
		return nil, err
	}
	var items []ItemView
	for _, sub := range fields {
		if sub.num != 1 {
			continue
		}
		it, err := decodeItemView(sub)
		if err != nil {
			return nil, fmt.Errorf("inventory: %w", err)
		}
		items = append(items, it)
	}
	return items, nil
}
