package utils

import (
	"bytes"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// ContentHash is the identity of what relayers vote on: keccak256(resourceID ‖ payload).
func ContentHash(resourceID [32]byte, payload []byte) common.Hash {
	return crypto.Keccak256Hash(resourceID[:], payload)
}

func BinarySerialize(data interface{}) ([]byte, error) {
	if data == nil {
		return nil, nil
	}

	var buff bytes.Buffer
	err := binary.Write(&buff, binary.LittleEndian, data)
	if err != nil {
		return nil, errors.Wrap(err, "writing data to buff")
	}

	return buff.Bytes(), nil
}

func BinaryDeserialize(data []byte, out interface{}) error {
	err := binary.Read(bytes.NewReader(data), binary.LittleEndian, out)
	if err != nil {
		return errors.Wrap(err, "reading data from buff")
	}

	return nil
}

// PadWord left pads b to a 32 byte word.
func PadWord(b []byte) []byte {
	return common.LeftPadBytes(b, 32)
}
