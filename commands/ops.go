package commands

import (
	"strconv"
	"strings"

	"github.com/iotaledger/hive.go/ierrors"
)

var ErrEmptyCommand = ierrors.New("command is empty")

type Operation int

const (
	DEFAULT Operation = iota
	// Create a named wallet.
	NEW_WALLET
	// Allocate coins to a wallet out of thin air.
	GENESIS
	// Transfer money from a wallet to one or more recipients.
	TRANSFER
	// Mine one block with all pending transactions.
	MINE
	// Start mining, infinite loop until explicit stop.
	START
	// Stop mining.
	STOP
	// Get the balance of a wallet.
	GET_BALANCE
	// List unspent outputs, of one wallet or of everyone.
	UTXOS
	// List pending transactions.
	MEMPOOL
	// Show the blockchain.
	SHOW
	// Write chain and utxos to disk.
	EXPORT
	// List wallets and their addresses.
	WALLETS
	HELP
	QUIT
)

// A command contains a operation and many arguments.
type Command struct {
	Op   Operation
	Args []string
}

var ops = map[string]Operation{
	"new_wallet": NEW_WALLET,
	"genesis":    GENESIS,
	"transfer":   TRANSFER,
	"mine":       MINE,
	"start":      START,
	"stop":       STOP,
	"balance":    GET_BALANCE,
	"utxos":      UTXOS,
	"mempool":    MEMPOOL,
	"show":       SHOW,
	"export":     EXPORT,
	"wallets":    WALLETS,
	"help":       HELP,
	"quit":       QUIT,
	"exit":       QUIT,
}

// Usage lists every command with its arguments.
const Usage = `new_wallet <name>                    create a wallet
genesis <name> <amount>              allocate coins to a wallet
transfer <from> <to> <amount> [...]  pay one or more recipients
mine <miner>                         mine a block with the pending transactions
start <miner> / stop                 mine continuously in the background
balance <name>                       confirmed balance of a wallet
utxos [name]                         unspent outputs
mempool                              pending transactions
show [depth]                         print the chain
export                               write chain.json and utxos.csv
wallets                              list wallets
quit                                 leave`

func isPositiveAmount(s string) bool {
	v, err := strconv.ParseFloat(s, 64)
	return err == nil && v > 0
}

func (c Command) IsValid() bool {
	switch c.Op {
	case STOP, MEMPOOL, EXPORT, WALLETS, HELP, QUIT:
		return len(c.Args) == 0
	case NEW_WALLET, MINE, START, GET_BALANCE:
		return len(c.Args) == 1
	case UTXOS:
		return len(c.Args) <= 1
	case GENESIS:
		// A genesis of zero coins is allowed.
		if len(c.Args) != 2 {
			return false
		}
		v, err := strconv.ParseFloat(c.Args[1], 64)
		return err == nil && v >= 0
	case TRANSFER:
		// sender followed by (recipient, amount) pairs.
		if len(c.Args) < 3 || len(c.Args)%2 != 1 {
			return false
		}
		for i := 2; i < len(c.Args); i += 2 {
			if !isPositiveAmount(c.Args[i]) {
				return false
			}
		}
		return true
	case SHOW:
		if len(c.Args) == 0 {
			return true
		}
		if len(c.Args) != 1 {
			return false
		}
		// depth must be a number.
		d, err := strconv.Atoi(c.Args[0])
		return err == nil && d >= 0
	default:
		return false
	}
}

// From string, create a command. Arguments are separated by whitespace.
func CreateCommand(s string) (Command, error) {
	ss := strings.Fields(s)
	if len(ss) == 0 {
		return Command{}, ErrEmptyCommand
	}
	op, ok := ops[ss[0]]
	if !ok {
		return Command{}, ierrors.Errorf("unknown command %q", ss[0])
	}
	cmd := Command{Op: op, Args: ss[1:]}
	if !cmd.IsValid() {
		return Command{}, ierrors.Errorf("invalid arguments for %s", ss[0])
	}
	return cmd, nil
}
