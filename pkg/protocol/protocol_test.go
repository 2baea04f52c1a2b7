package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"reflect"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/crystal-mush/swordsanddeath/pkg/gamedb"
)

var sword = ItemView{Name: "Rusty Iron Sword", Type: gamedb.Sword, Rarity: gamedb.Common, Level: 3, Damage: 4}
var boots = ItemView{Name: "Gleaming Steel Boots", Type: gamedb.Boots, Rarity: gamedb.Legendary, Level: 12, Defense: 41}

func roundTrip(t *testing.T, m Message) Message {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteMessage(&buf, m); err != nil {
		t.Fatalf("WriteMessage(%T): %v", m, err)
	}
	r := NewReader(&buf)
	var got Message
	var err error
	switch m.Family() {
	case FamilyEntryPoint:
		got, err = ReadEntryPoint(r)
	case FamilyEntryResponse:
		got, err = ReadEntryResponse(r)
	case FamilyClientEvent:
		got, err = ReadClientEvent(r)
	case FamilyServerEvent:
		got, err = ReadServerEvent(r)
	}
	if err != nil {
		t.Fatalf("read %T: %v", m, err)
	}
	if _, err := ReadFrame(r); !errors.Is(err, io.EOF) {
		t.Fatalf("expected clean EOF after one frame, got %v", err)
	}
	return got
}

func TestRoundTrip(t *testing.T) {
	tests := []Message{
		VersionProbe{Version: "0.1.0"},
		LoginAttempt{Username: "hero", Password: "secret", Signup: true, ClientVersion: "0.1.0"},
		LoginAttempt{Username: "hero", Password: "secret"},
		VersionAccepted{Version: "0.1.0"},
		Motd{Text: "Welcome!"},
		EntryError{Msg: "Incorrect password."},
		ClientDisconnect{},
		ClientKeepAlive{Time: 1700000000},
		Step{},
		OpenInv{},
		DropItem{Name: "Rusty Iron Sword"},
		InspectItem{Name: ""},
		Attack{},
		TryFlee{},
		ClientError{ErrorData{Msg: "terminal too small", Disconnect: true}},
		ServerDisconnect{},
		ServerKeepAlive{Time: 1700000020},
		Notice{Text: "You dropped Rusty Iron Sword."},
		GainExp{Amount: 7},
		FindItem{Item: sword},
		Update{Player: PlayerSnapshot{Level: 2, Exp: 13, Region: gamedb.StartRegion, Steps: 40, Health: 100}},
		Inventory{Items: []ItemView{sword, boots}},
		ShowItem{Item: boots},
		ServerError{ErrorData{Msg: "The server is shutting down.", Disconnect: true}},
		Encounter{Data: EncounterData{Enemy: Enemy{Name: "Grol", Race: "Orc", Level: 3, Health: 30}, Outcome: EncounterAttack{Damage: 5}}},
		Encounter{Data: EncounterData{Enemy: Enemy{Name: "Grol"}, Outcome: EncounterFlee{Escaped: true}}},
		Encounter{Data: EncounterData{Enemy: Enemy{Name: "Grol"}, Outcome: EncounterWin{Items: []ItemView{sword}, Exp: 9}}},
		Encounter{Data: EncounterData{Enemy: Enemy{Name: "Grol"}, Outcome: EncounterLost{}}},
	}
	for _, m := range tests {
		got := roundTrip(t, m)
		if !reflect.DeepEqual(got, m) {
			t.Errorf("round trip %T:\n got %#v\nwant %#v", m, got, m)
		}
	}
}

func TestRoundTripEmptyInventory(t *testing.T) {
	got := roundTrip(t, Inventory{})
	inv, ok := got.(Inventory)
	if !ok {
		t.Fatalf("got %T, want Inventory", got)
	}
	if len(inv.Items) != 0 {
		t.Errorf("got %d items, want 0", len(inv.Items))
	}
}

func TestEncodeRejects(t *testing.T) {
	if _, err := Encode(nil); err == nil {
		t.Error("Encode(nil) succeeded")
	}
	bad := sword
	bad.Type = gamedb.NumItemTypes
	if _, err := Encode(FindItem{Item: bad}); err == nil {
		t.Error("Encode accepted an out of range item type")
	}
	bad = sword
	bad.Rarity = 9
	if _, err := Encode(Inventory{Items: []ItemView{sword, bad}}); err == nil {
		t.Error("Encode accepted an out of range rarity")
	}
	if _, err := Encode(Encounter{Data: EncounterData{}}); err == nil {
		t.Error("Encode accepted an encounter without outcome")
	}
}

func frame(body []byte) []byte {
	return append(binary.AppendUvarint(nil, uint64(len(body))), body...)
}

func decodeKind(t *testing.T, err error) ErrorKind {
	t.Helper()
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error %v is not a *DecodeError", err)
	}
	return de.Kind
}

func TestDecodeRejects(t *testing.T) {
	twoFields := appendUnit(appendUnit(nil, 3), 4)
	unknown := appendUnit(nil, 42)
	wrongType := appendString(nil, 3, "step")
	badUTF8 := appendString(nil, 5, "\xff\xfe")
	tests := []struct {
		name string
		data []byte
		want ErrorKind
	}{
		{"empty body", frame(nil), ErrKindMissingVariant},
		{"two variants", frame(twoFields), ErrKindMultipleVariants},
		{"unknown variant", frame(unknown), ErrKindUnknownVariant},
		{"wrong wire type", frame(wrongType), ErrKindMalformed},
		{"invalid utf8", frame(badUTF8), ErrKindMalformed},
		{"garbage tag", frame([]byte{0xff, 0xff, 0xff}), ErrKindTruncated},
		{"short body", frame(appendString(nil, 5, "sword"))[:4], ErrKindTruncated},
		{"partial length", []byte{0x80}, ErrKindTruncated},
		{"too large", binary.AppendUvarint(nil, MaxFrameSize+1), ErrKindFrameTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadClientEvent(bytes.NewReader(tt.data))
			if err == nil {
				t.Fatal("decode succeeded")
			}
			if got := decodeKind(t, err); got != tt.want {
				t.Errorf("kind = %v, want %v (%v)", got, tt.want, err)
			}
		})
	}
}

func TestDecodeEncounterOutcomes(t *testing.T) {
	var enemy []byte
	enemy = appendString(enemy, 1, "Grol")
	var none []byte
	none = appendMessage(none, 1, enemy)
	both := appendBool(appendUint(append([]byte(nil), none...), 2, 5), 3, true)

	for name, tc := range map[string]struct {
		data []byte
		want ErrorKind
	}{
		"no outcome":  {none, ErrKindMissingVariant},
		"two outcome": {both, ErrKindMultipleVariants},
	} {
		body := appendMessage(nil, 6, tc.data)
		_, err := DecodeServerEvent(body)
		if err == nil {
			t.Fatalf("%s: decode succeeded", name)
		}
		if got := decodeKind(t, err); got != tc.want {
			t.Errorf("%s: kind = %v, want %v", name, got, tc.want)
		}
	}
}

func TestDecodeItemViewRange(t *testing.T) {
	var item []byte
	item = appendString(item, 1, "x")
	item = appendUint(item, 2, 6)
	_, err := DecodeServerEvent(appendMessage(nil, 9, item))
	if err == nil {
		t.Fatal("accepted item type 6")
	}
	if got := decodeKind(t, err); got != ErrKindMalformed {
		t.Errorf("kind = %v, want %v", got, ErrKindMalformed)
	}
}

func TestUnknownNestedFieldsIgnored(t *testing.T) {
	var login []byte
	login = appendString(login, 1, "hero")
	login = appendString(login, 2, "pw")
	login = appendUint(login, 15, 99)
	login = protowire.AppendTag(login, 16, protowire.Fixed32Type)
	login = protowire.AppendFixed32(login, 7)
	m, err := DecodeEntryPoint(appendMessage(nil, 2, login))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := LoginAttempt{Username: "hero", Password: "pw"}
	if m != want {
		t.Errorf("got %#v, want %#v", m, want)
	}
}

func TestCleanEOF(t *testing.T) {
	_, err := ReadServerEvent(bytes.NewReader(nil))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want io.EOF", err)
	}
	if !IsEOF(err) {
		t.Error("IsEOF = false")
	}
	var de *DecodeError
	if !errors.As(err, &de) || de.Family != FamilyServerEvent {
		t.Errorf("family not recorded: %v", err)
	}
}

func TestReadFrameWithoutByteReader(t *testing.T) {
	data, err := Encode(Notice{Text: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	data = append(data, data...)
	r := io.MultiReader(bytes.NewReader(data)) // hides ReadByte
	for i := 0; i < 2; i++ {
		m, err := ReadServerEvent(r)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if m != (Notice{Text: "hello"}) {
			t.Errorf("frame %d: got %#v", i, m)
		}
	}
}
