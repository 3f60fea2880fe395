package notify

import (
	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("notify: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("notify: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode returns the deterministic CBOR form of event. Equal events always
// encode to identical bytes.
func Encode(event domain.TicketEvent) ([]byte, error) {
	return encMode.Marshal(event)
}

func Decode(data []byte) (domain.TicketEvent, error) {
	var event domain.TicketEvent
	err := decMode.Unmarshal(data, &event)
	return event, err
}
