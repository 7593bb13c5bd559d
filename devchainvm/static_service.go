// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devchainvm

import (
	"net/http"

	"github.com/ava-labs/avalanchego/utils/formatting"

	cjson "github.com/ava-labs/avalanchego/utils/json"
)

// StaticService answers requests that do not need a running chain: building
// and inspecting genesis blobs.
type StaticService struct{}

// BuildGenesisArgs ...
type BuildGenesisArgs struct {
	ChainID  cjson.Uint64        `json:"chainId"`
	Accounts cjson.Uint64        `json:"accounts"`
	Balance  string              `json:"balance"`
	GasPrice string              `json:"gasPrice"`
	Encoding formatting.Encoding `json:"encoding"`
}

// BuildGenesisReply ...
type BuildGenesisReply struct {
	Bytes    string              `json:"bytes"`
	Encoding formatting.Encoding `json:"encoding"`
}

// BuildGenesis constructs an encoded genesis blob with the given dev
// allocation.
func (ss *StaticService) BuildGenesis(_ *http.Request, args *BuildGenesisArgs, reply *BuildGenesisReply) error {
	balance, err := ParseU256(args.Balance)
	if err != nil {
		return err
	}
	gasPrice, err := ParseU256(args.GasPrice)
	if err != nil {
		return err
	}
	genesis := DefaultGenesis(uint64(args.ChainID), int(args.Accounts), balance, gasPrice)
	genesisBytes, err := genesis.Bytes()
	if err != nil {
		return err
	}
	encoded, err := formatting.Encode(args.Encoding, genesisBytes)
	if err != nil {
		return err
	}
	reply.Bytes = encoded
	reply.Encoding = args.Encoding
	return nil
}

// DecodeGenesisArgs ...
type DecodeGenesisArgs struct {
	Bytes    string              `json:"bytes"`
	Encoding formatting.Encoding `json:"encoding"`
}

// DecodeGenesisReply ...
type DecodeGenesisReply struct {
	Genesis *Genesis `json:"genesis"`
}

// DecodeGenesis parses an encoded genesis blob back into its JSON form.
func (ss *StaticService) DecodeGenesis(_ *http.Request, args *DecodeGenesisArgs, reply *DecodeGenesisReply) error {
	b, err := formatting.Decode(args.Encoding, args.Bytes)
	if err != nil {
		return err
	}
	genesis, err := ParseGenesis(b)
	if err != nil {
		return err
	}
	reply.Genesis = genesis
	return nil
}
