package shared

import "errors"

var (
	// ErrDataUnavailable is returned when market data could not be fetched or
	// the fetched history is insufficient.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrNoSignal is returned when valid data did not trigger the breakout rule.
	ErrNoSignal = errors.New("no signal")
	// ErrUnknownInstrument is returned when a symbol does not resolve to a supported instrument.
	ErrUnknownInstrument = errors.New("unknown instrument")
	// ErrInvalidTransition is returned on an attempt to transition a trade that is not open.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrTradeNotFound is returned when no open trade matches the provided id.
	ErrTradeNotFound = errors.New("trade not found")
)
