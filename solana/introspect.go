package solana

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// The introspection below is a stub kept for operator display only.
// It extracts the header and fee payer from a serialized message; it
// does not decode account tables or instruction data, and it is never
// consulted on the SIGN path.

// MessageHeader is the 3-byte header of a legacy transaction message.
type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// Message holds the parts of a message the stub parser extracts.
type Message struct {
	Header   MessageHeader
	FeePayer [32]byte
}

// TransactionInfo is a display summary of a message.
type TransactionInfo struct {
	FeePayer           string
	RequiredSignatures uint8
	FeePayerIsSigner   bool
}

// ParseMessage extracts the header and the fee payer (the first
// account) from serialized message bytes.
func ParseMessage(messageBytes []byte) (*Message, error) {
	if len(messageBytes) < 3 {
		return nil, errors.New("message too short")
	}

	msg := &Message{
		Header: MessageHeader{
			NumRequiredSignatures:       messageBytes[0],
			NumReadonlySignedAccounts:   messageBytes[1],
			NumReadonlyUnsignedAccounts: messageBytes[2],
		},
	}

	// The fee payer is always the first account. The byte right after
	// the header is the compact account count; skip it.
	const feePayerStart = 4
	if len(messageBytes) < feePayerStart+32 {
		return nil, errors.New("message too short, can't extract fee payer")
	}
	copy(msg.FeePayer[:], messageBytes[feePayerStart:feePayerStart+32])

	return msg, nil
}

// Introspect summarizes messageBytes, flagging whether the fee payer
// matches signerPub.
func Introspect(messageBytes []byte, signerPub []byte) (*TransactionInfo, error) {
	msg, err := ParseMessage(messageBytes)
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	info := &TransactionInfo{
		FeePayer:           base58.Encode(msg.FeePayer[:]),
		RequiredSignatures: msg.Header.NumRequiredSignatures,
	}
	if len(signerPub) == 32 {
		var pub [32]byte
		copy(pub[:], signerPub)
		info.FeePayerIsSigner = msg.FeePayer == pub
	}
	return info, nil
}

// Format renders the summary for an operator.
func (i *TransactionInfo) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fee payer: %s\n", i.FeePayer)
	fmt.Fprintf(&b, "Signatures required: %d\n", i.RequiredSignatures)
	if !i.FeePayerIsSigner {
		b.WriteString("Warning: fee payer does not match the device key\n")
	}
	return b.String()
}
