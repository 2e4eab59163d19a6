// File: internal/ingest/parser.go
package ingest

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/contract-observer/pkg/utils"
)

// unknownEventName labels logs whose topic matches no ABI event
const unknownEventName = "Unknown"

// Parser decodes raw logs against one contract's ABI
type Parser struct {
	abi    *abi.ABI
	logger *logrus.Entry
}

// NewParser creates a parser over a parsed contract ABI
func NewParser(contractABI *abi.ABI) *Parser {
	return &Parser{
		abi:    contractABI,
		logger: utils.ComponentLogger("ingest"),
	}
}

// Parse resolves the event name and decoded arguments for a log. Logs whose
// topic is not in the ABI come back named Unknown with the raw topics and
// data preserved.
func (p *Parser) Parse(log types.Log) (string, map[string]interface{}) {
	if len(log.Topics) == 0 {
		return unknownEventName, rawArgs(log)
	}

	eventName, event := p.findEventByTopic(log.Topics[0])
	if event == nil {
		return unknownEventName, rawArgs(log)
	}

	args, err := p.decodeArgs(event, log)
	if err != nil {
		p.logger.WithError(err).WithField("event", eventName).Warn("Failed to decode event arguments")
		return eventName, rawArgs(log)
	}
	return eventName, args
}

// findEventByTopic finds the ABI event whose id matches the first topic
func (p *Parser) findEventByTopic(topic common.Hash) (string, *abi.Event) {
	for name, event := range p.abi.Events {
		if event.ID == topic {
			return name, &event
		}
	}
	return "", nil
}

// decodeArgs parses indexed topics and non-indexed data into a flat map
func (p *Parser) decodeArgs(event *abi.Event, log types.Log) (map[string]interface{}, error) {
	result := make(map[string]interface{})

	topicIndex := 1 // topic 0 is the event signature
	for _, input := range event.Inputs {
		if !input.Indexed {
			continue
		}
		if topicIndex >= len(log.Topics) {
			return nil, fmt.Errorf("insufficient topics for indexed parameter %s", input.Name)
		}
		result[input.Name] = parseTopicValue(input.Type, log.Topics[topicIndex])
		topicIndex++
	}

	if len(log.Data) > 0 {
		nonIndexed := make(abi.Arguments, 0)
		for _, input := range event.Inputs {
			if !input.Indexed {
				nonIndexed = append(nonIndexed, input)
			}
		}
		if len(nonIndexed) > 0 {
			values, err := nonIndexed.Unpack(log.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to unpack event data: %w", err)
			}
			for i, input := range nonIndexed {
				if i < len(values) {
					result[input.Name] = convertValue(values[i])
				}
			}
		}
	}

	return result, nil
}

// parseTopicValue decodes a topic word based on the parameter type
func parseTopicValue(typ abi.Type, topic common.Hash) interface{} {
	switch typ.T {
	case abi.AddressTy:
		return common.BytesToAddress(topic.Bytes()).Hex()
	case abi.IntTy, abi.UintTy:
		return new(big.Int).SetBytes(topic.Bytes()).String()
	case abi.BoolTy:
		return topic.Big().Sign() != 0
	default:
		// Indexed dynamic types only carry their hash
		return topic.Hex()
	}
}

// convertValue converts ABI values to JSON-serializable types
func convertValue(value interface{}) interface{} {
	switch v := value.(type) {
	case *big.Int:
		return v.String()
	case common.Address:
		return v.Hex()
	case []byte:
		return hex.EncodeToString(v)
	case bool, string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func rawArgs(log types.Log) map[string]interface{} {
	topics := make([]string, len(log.Topics))
	for i, topic := range log.Topics {
		topics[i] = topic.Hex()
	}
	return map[string]interface{}{
		"topics": topics,
		"data":   hex.EncodeToString(log.Data),
		"raw":    true,
	}
}
