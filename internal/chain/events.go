package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// 事件名称
const (
	EventCreateSuperhero = "CreateSuperhero"
	EventTransfer        = "Transfer"
	EventRoleGranted     = "RoleGranted"
	EventRoleRevoked     = "RoleRevoked"
	EventIdeaCreated     = "IdeaCreated"
	EventIdeaPurchased   = "IdeaPurchased"
	EventTeamCreated     = "TeamCreated"
)

// Event 解码后的链上事件
type Event interface {
	EventName() string
	Meta() *EventMeta
}

// EventMeta 事件所在的日志位置
type EventMeta struct {
	Contract    string         `json:"-"`
	Address     common.Address `json:"-"`
	TxHash      common.Hash    `json:"-"`
	LogIndex    uint           `json:"-"`
	BlockNumber uint64         `json:"-"`
}

func (m *EventMeta) Meta() *EventMeta { return m }

// SuperheroCreated 身份NFT铸造
type SuperheroCreated struct {
	EventMeta
	Superhero common.Address `json:"superhero"`
	Id        *big.Int       `json:"id"`
	Name      [32]byte       `json:"-"`
	Bio       [32]byte       `json:"-"`
	Uri       string         `json:"uri"`
}

func (*SuperheroCreated) EventName() string { return EventCreateSuperhero }

// NFTTransfer ERC721 转移
type NFTTransfer struct {
	EventMeta
	From    common.Address `json:"from"`
	To      common.Address `json:"to"`
	TokenId *big.Int       `json:"tokenId"`
}

func (*NFTTransfer) EventName() string { return EventTransfer }

// RoleChanged 角色授予或撤销
type RoleChanged struct {
	EventMeta
	Granted bool           `json:"granted"`
	Role    [32]byte       `json:"-"`
	Account common.Address `json:"account"`
	Sender  common.Address `json:"sender"`
}

func (e *RoleChanged) EventName() string {
	if e.Granted {
		return EventRoleGranted
	}
	return EventRoleRevoked
}

// IdeaCreated 创意挂单铸造
type IdeaCreated struct {
	EventMeta
	IdeaId     *big.Int       `json:"ideaId"`
	Creator    common.Address `json:"creator"`
	Title      [32]byte       `json:"-"`
	Categories [][32]byte     `json:"-"`
	IpfsHash   string         `json:"ipfsHash"`
	Price      *big.Int       `json:"price"`
}

func (*IdeaCreated) EventName() string { return EventIdeaCreated }

// IdeaPurchased 市场成交
type IdeaPurchased struct {
	EventMeta
	IdeaId         *big.Int       `json:"ideaId"`
	Buyer          common.Address `json:"buyer"`
	Seller         common.Address `json:"seller"`
	Price          *big.Int       `json:"price"`
	MarketplaceFee *big.Int       `json:"marketplaceFee"`
	Timestamp      *big.Int       `json:"timestamp"`
}

func (*IdeaPurchased) EventName() string { return EventIdeaPurchased }

// TeamCreated 团队创建
type TeamCreated struct {
	EventMeta
	TeamId          *big.Int       `json:"teamId"`
	Leader          common.Address `json:"leader"`
	TeamName        string         `json:"teamName"`
	ProjectName     string         `json:"projectName"`
	RequiredMembers *big.Int       `json:"requiredMembers"`
	RequiredStake   *big.Int       `json:"requiredStake"`
}

func (*TeamCreated) EventName() string { return EventTeamCreated }

// eventFactories 每个事件名对应的解码目标
var eventFactories = map[string]func() Event{
	EventCreateSuperhero: func() Event { return &SuperheroCreated{} },
	EventTransfer:        func() Event { return &NFTTransfer{} },
	EventRoleGranted:     func() Event { return &RoleChanged{Granted: true} },
	EventRoleRevoked:     func() Event { return &RoleChanged{} },
	EventIdeaCreated:     func() Event { return &IdeaCreated{} },
	EventIdeaPurchased:   func() Event { return &IdeaPurchased{} },
	EventTeamCreated:     func() Event { return &TeamCreated{} },
}

// DecodeLog 按合约ABI把日志解码为具体事件，无法识别或结构不符时返回错误
func (c *Contract) DecodeLog(log types.Log) (Event, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("%w: log without topics in %s", ErrUnknownEvent, c.name)
	}

	abiEvent, err := c.abi.EventByID(log.Topics[0])
	if err != nil {
		return nil, fmt.Errorf("%w: signature %s in %s", ErrUnknownEvent, log.Topics[0].Hex(), c.name)
	}
	factory, ok := eventFactories[abiEvent.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s has no decoder", ErrUnknownEvent, c.name, abiEvent.Name)
	}

	event := factory()
	if err := unpackLog(c.abi, abiEvent, event, log); err != nil {
		return nil, fmt.Errorf("decode %s.%s at %s: %w", c.name, abiEvent.Name, log.TxHash.Hex(), err)
	}

	meta := event.Meta()
	meta.Contract = c.name
	meta.Address = log.Address
	meta.TxHash = log.TxHash
	meta.LogIndex = log.Index
	meta.BlockNumber = log.BlockNumber
	return event, nil
}

// unpackLog 解码非索引数据和索引主题
func unpackLog(contractABI abi.ABI, abiEvent *abi.Event, out interface{}, log types.Log) error {
	var indexed abi.Arguments
	for _, arg := range abiEvent.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(log.Topics)-1 != len(indexed) {
		return fmt.Errorf("expected %d indexed topics, got %d", len(indexed), len(log.Topics)-1)
	}

	if len(abiEvent.Inputs.NonIndexed()) > 0 {
		if err := contractABI.UnpackIntoInterface(out, abiEvent.Name, log.Data); err != nil {
			return err
		}
	} else if len(log.Data) > 0 {
		return fmt.Errorf("unexpected data for %s", abiEvent.Name)
	}
	return abi.ParseTopics(out, indexed, log.Topics[1:])
}
