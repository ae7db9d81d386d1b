package segment

import (
	"crypto/ecdsa"

	"github.com/balancechain/core/pkg/codec"
)

type segmentTestKey struct {
	priv      *ecdsa.PrivateKey
	pubHex    string
	hid       string
	algorithm string
}

func newSegmentTestKey() (*segmentTestKey, error) {
	kp, err := codec.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	pubHex := codec.PublicKeyHex(&kp.PrivateKey.PublicKey)
	hid, err := codec.DeriveHID(pubHex)
	if err != nil {
		return nil, err
	}
	return &segmentTestKey{priv: kp.PrivateKey, pubHex: pubHex, hid: hid, algorithm: kp.Algorithm}, nil
}
