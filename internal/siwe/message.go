package siwe

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Custom errors
var (
	ErrMalformedMessage   = errors.New("malformed sign-in message")
	ErrMalformedSignature = errors.New("malformed signature")
	ErrInvalidSignature   = errors.New("invalid signature")
)

// Message is a parsed EIP-4361 sign-in message. The raw text is retained
// because the signature covers the exact bytes the wallet displayed.
type Message struct {
	Domain         string
	Address        common.Address
	Statement      string
	URI            string
	Version        string
	ChainID        string
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime *time.Time
	NotBefore      *time.Time
	RequestID      string
	Resources      []string

	raw string
}

const preambleSuffix = " wants you to sign in with your Ethereum account:"

// ParseMessage parses the EIP-4361 text layout:
//
//	<domain> wants you to sign in with your Ethereum account:
//	<address>
//
//	[statement]
//
//	URI: <uri>
//	Version: <version>
//	Chain ID: <chain-id>
//	Nonce: <nonce>
//	Issued At: <timestamp>
//	[Expiration Time: <timestamp>]
//	[Not Before: <timestamp>]
//	[Request ID: <id>]
//	[Resources:
//	- <uri>
//	...]
func ParseMessage(raw string) (*Message, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: too short", ErrMalformedMessage)
	}

	msg := &Message{raw: raw}

	// Preamble carries the requesting domain
	if !strings.HasSuffix(lines[0], preambleSuffix) {
		return nil, fmt.Errorf("%w: missing preamble", ErrMalformedMessage)
	}
	msg.Domain = strings.TrimSuffix(lines[0], preambleSuffix)
	if msg.Domain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrMalformedMessage)
	}

	// Address line
	if !common.IsHexAddress(lines[1]) {
		return nil, fmt.Errorf("%w: invalid address %q", ErrMalformedMessage, lines[1])
	}
	msg.Address = common.HexToAddress(lines[1])

	// Optional statement sits between two blank lines
	i := 2
	if i < len(lines) && lines[i] == "" {
		i++
		var statement []string
		for i < len(lines) && lines[i] != "" && !strings.HasPrefix(lines[i], "URI: ") {
			statement = append(statement, lines[i])
			i++
		}
		msg.Statement = strings.Join(statement, "\n")
		if i < len(lines) && lines[i] == "" {
			i++
		}
	}

	// Mandatory fields, in order
	var err error
	if msg.URI, err = takeField(lines, &i, "URI: "); err != nil {
		return nil, err
	}
	if msg.Version, err = takeField(lines, &i, "Version: "); err != nil {
		return nil, err
	}
	if msg.Version != "1" {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrMalformedMessage, msg.Version)
	}
	if msg.ChainID, err = takeField(lines, &i, "Chain ID: "); err != nil {
		return nil, err
	}
	if msg.Nonce, err = takeField(lines, &i, "Nonce: "); err != nil {
		return nil, err
	}
	issuedAt, err := takeField(lines, &i, "Issued At: ")
	if err != nil {
		return nil, err
	}
	if msg.IssuedAt, err = parseTimestamp(issuedAt); err != nil {
		return nil, err
	}

	// Optional fields
	if v, ok := peekField(lines, &i, "Expiration Time: "); ok {
		t, err := parseTimestamp(v)
		if err != nil {
			return nil, err
		}
		msg.ExpirationTime = &t
	}
	if v, ok := peekField(lines, &i, "Not Before: "); ok {
		t, err := parseTimestamp(v)
		if err != nil {
			return nil, err
		}
		msg.NotBefore = &t
	}
	if v, ok := peekField(lines, &i, "Request ID: "); ok {
		msg.RequestID = v
	}

	// Resource list
	if i < len(lines) && lines[i] == "Resources:" {
		i++
		for i < len(lines) && strings.HasPrefix(lines[i], "- ") {
			msg.Resources = append(msg.Resources, strings.TrimPrefix(lines[i], "- "))
			i++
		}
		if len(msg.Resources) == 0 {
			return nil, fmt.Errorf("%w: empty resource list", ErrMalformedMessage)
		}
	}

	// Anything left over means the layout was not EIP-4361
	for ; i < len(lines); i++ {
		if lines[i] != "" {
			return nil, fmt.Errorf("%w: unexpected line %q", ErrMalformedMessage, lines[i])
		}
	}

	return msg, nil
}

// takeField consumes a mandatory "<prefix><value>" line.
func takeField(lines []string, i *int, prefix string) (string, error) {
	if *i >= len(lines) || !strings.HasPrefix(lines[*i], prefix) {
		return "", fmt.Errorf("%w: missing %q field", ErrMalformedMessage, strings.TrimSuffix(prefix, ": "))
	}
	value := strings.TrimPrefix(lines[*i], prefix)
	if value == "" {
		return "", fmt.Errorf("%w: empty %q field", ErrMalformedMessage, strings.TrimSuffix(prefix, ": "))
	}
	*i++
	return value, nil
}

// peekField consumes an optional "<prefix><value>" line if present.
func peekField(lines []string, i *int, prefix string) (string, bool) {
	if *i >= len(lines) || !strings.HasPrefix(lines[*i], prefix) {
		return "", false
	}
	value := strings.TrimPrefix(lines[*i], prefix)
	*i++
	return value, true
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformedMessage, value)
	}
	return t, nil
}
