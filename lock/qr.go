package lock

import "rsc.io/qr"

// QREncoder renders bytes (the JSON-encoded InitialPairingSecret) as a QR
// code image for the out-of-band channel. The core pairing logic only
// needs this to run the initial-pairing flow end to end; it is not part
// of the cryptographic request pipeline.
type QREncoder interface {
	Encode(data []byte) (png []byte, err error)
}

// defaultQREncoder renders a PNG using rsc.io/qr at medium error
// correction, sufficient for a phone camera to scan off a screen.
type defaultQREncoder struct{}

// NewQREncoder returns the default QR renderer.
func NewQREncoder() QREncoder { return defaultQREncoder{} }

func (defaultQREncoder) Encode(data []byte) ([]byte, error) {
	code, err := qr.Encode(string(data), qr.M)
	if err != nil {
		return nil, err
	}
	return code.PNG(), nil
}
