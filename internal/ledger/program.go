package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Default program interface names used when no IDL file is configured.
const (
	DefaultCreateAccountName = "createAccount"
	DefaultAppendEntryName   = "appendEntry"
	DefaultAccountName       = "BaseAccount"
)

// Discriminator is the 8-byte prefix Anchor programs use to tag
// instructions and account types.
type Discriminator [8]byte

// InstructionDiscriminator derives the tag of an instruction from its IDL
// name.
func InstructionDiscriminator(name string) Discriminator {
	return discriminator("global:" + snakeCase(name))
}

// AccountDiscriminator derives the tag of an account type from its IDL name.
func AccountDiscriminator(name string) Discriminator {
	return discriminator("account:" + name)
}

func discriminator(preimage string) Discriminator {
	sum := sha256.Sum256([]byte(preimage))
	var d Discriminator
	copy(d[:], sum[:8])
	return d
}

// snakeCase converts an IDL camelCase name to the snake_case form the
// program was compiled with.
func snakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Schema is the interface description of the on-chain program: where it
// lives and what its instructions and account type are called.
type Schema struct {
	ProgramID         solana.PublicKey
	CreateAccountName string
	AppendEntryName   string
	AccountName       string
}

// DefaultSchema returns the schema with default names for programID.
func DefaultSchema(programID solana.PublicKey) Schema {
	return Schema{
		ProgramID:         programID,
		CreateAccountName: DefaultCreateAccountName,
		AppendEntryName:   DefaultAppendEntryName,
		AccountName:       DefaultAccountName,
	}
}

type idlFile struct {
	Name         string `json:"name"`
	Instructions []struct {
		Name string `json:"name"`
		Args []struct {
			Name string          `json:"name"`
			Type json.RawMessage `json:"type"`
		} `json:"args"`
	} `json:"instructions"`
	Accounts []struct {
		Name string `json:"name"`
	} `json:"accounts"`
	Metadata struct {
		Address string `json:"address"`
	} `json:"metadata"`
}

// LoadIDL reads an Anchor IDL file. The program ID comes from
// metadata.address. The instruction without arguments is the account
// creation instruction and the one taking a single string is the append
// instruction.
func LoadIDL(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, err
	}
	return ParseIDL(data)
}

// ParseIDL parses IDL JSON. See LoadIDL.
func ParseIDL(data []byte) (Schema, error) {
	var idl idlFile
	if err := json.Unmarshal(data, &idl); err != nil {
		return Schema{}, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	var schema Schema
	if idl.Metadata.Address != "" {
		programID, err := solana.PublicKeyFromBase58(idl.Metadata.Address)
		if err != nil {
			return Schema{}, fmt.Errorf("%w: program address: %v", ErrInvalidSchema, err)
		}
		schema.ProgramID = programID
	}

	for _, ix := range idl.Instructions {
		switch {
		case len(ix.Args) == 0:
			if schema.CreateAccountName != "" {
				return Schema{}, fmt.Errorf("%w: ambiguous create instruction %q and %q", ErrInvalidSchema, schema.CreateAccountName, ix.Name)
			}
			schema.CreateAccountName = ix.Name
		case len(ix.Args) == 1 && string(bytes.Trim(ix.Args[0].Type, `"`)) == "string":
			if schema.AppendEntryName != "" {
				return Schema{}, fmt.Errorf("%w: ambiguous append instruction %q and %q", ErrInvalidSchema, schema.AppendEntryName, ix.Name)
			}
			schema.AppendEntryName = ix.Name
		}
	}
	if schema.CreateAccountName == "" || schema.AppendEntryName == "" {
		return Schema{}, fmt.Errorf("%w: create and append instructions are required", ErrInvalidSchema)
	}

	if len(idl.Accounts) != 1 {
		return Schema{}, fmt.Errorf("%w: want exactly one account type, got %d", ErrInvalidSchema, len(idl.Accounts))
	}
	schema.AccountName = idl.Accounts[0].Name

	return schema, nil
}

// Validate checks that the schema is usable.
func (s Schema) Validate() error {
	if s.ProgramID.IsZero() {
		return ErrNoProgram
	}
	if s.CreateAccountName == "" || s.AppendEntryName == "" || s.AccountName == "" {
		return fmt.Errorf("%w: missing instruction or account name", ErrInvalidSchema)
	}
	return nil
}

// Entry is one list item as stored on chain.
type Entry struct {
	Content   string
	Submitter solana.PublicKey
}

// Account is the decoded program account.
type Account struct {
	OwnerAuthority solana.PublicKey
	Entries        []Entry
}

type appendEntryArgs struct {
	Content string
}

// InstructionKind identifies a decoded program instruction.
type InstructionKind int

const (
	InstructionUnknown InstructionKind = iota
	InstructionCreateAccount
	InstructionAppendEntry
)

// CreateAccountInstruction builds the one-time account creation
// instruction. Both account and user must sign; user pays for the account.
func (s Schema) CreateAccountInstruction(account, user solana.PublicKey) solana.Instruction {
	d := InstructionDiscriminator(s.CreateAccountName)
	return solana.NewInstruction(
		s.ProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(account, true, true),
			solana.NewAccountMeta(user, true, true),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		},
		d[:],
	)
}

// AppendEntryInstruction builds the instruction appending content to
// account on behalf of user.
func (s Schema) AppendEntryInstruction(account, user solana.PublicKey, content string) (solana.Instruction, error) {
	d := InstructionDiscriminator(s.AppendEntryName)

	buf := new(bytes.Buffer)
	buf.Write(d[:])
	if err := bin.NewBorshEncoder(buf).Encode(appendEntryArgs{Content: content}); err != nil {
		return nil, fmt.Errorf("encode append args: %w", err)
	}

	return solana.NewInstruction(
		s.ProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(account, true, false),
			solana.NewAccountMeta(user, true, true),
		},
		buf.Bytes(),
	), nil
}

// DecodeInstruction identifies instruction data and returns the appended
// content for append instructions.
func (s Schema) DecodeInstruction(data []byte) (InstructionKind, string, error) {
	if len(data) < len(Discriminator{}) {
		return InstructionUnknown, "", fmt.Errorf("%w: instruction data too short", ErrDecode)
	}

	var d Discriminator
	copy(d[:], data)
	switch d {
	case InstructionDiscriminator(s.CreateAccountName):
		return InstructionCreateAccount, "", nil
	case InstructionDiscriminator(s.AppendEntryName):
		var args appendEntryArgs
		if err := bin.NewBorshDecoder(data[len(d):]).Decode(&args); err != nil {
			return InstructionAppendEntry, "", fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return InstructionAppendEntry, args.Content, nil
	}
	return InstructionUnknown, "", nil
}

// EncodeAccount serializes acct with the account discriminator.
func (s Schema) EncodeAccount(acct Account) ([]byte, error) {
	d := AccountDiscriminator(s.AccountName)

	buf := new(bytes.Buffer)
	buf.Write(d[:])
	if acct.Entries == nil {
		acct.Entries = []Entry{}
	}
	if err := bin.NewBorshEncoder(buf).Encode(acct); err != nil {
		return nil, fmt.Errorf("encode account: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeAccount parses raw account data. Trailing bytes left over from the
// allocated account space are ignored.
func (s Schema) DecodeAccount(data []byte) (*Account, error) {
	d := AccountDiscriminator(s.AccountName)
	if len(data) < len(d) {
		return nil, fmt.Errorf("%w: data too short (%d bytes)", ErrDecode, len(data))
	}
	if !bytes.Equal(data[:len(d)], d[:]) {
		return nil, fmt.Errorf("%w: not a %s account", ErrDecode, s.AccountName)
	}

	var acct Account
	if err := bin.NewBorshDecoder(data[len(d):]).Decode(&acct); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if acct.Entries == nil {
		acct.Entries = []Entry{}
	}
	return &acct, nil
}
