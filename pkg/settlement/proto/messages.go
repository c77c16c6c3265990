// Package proto holds the wire types for the Settlement service defined in
// settlement.proto. They are plain structs carried over gRPC using the
// JSON codec registered in pkg/settlement, rather than compiled protobuf
// bindings, since this repository has no protoc step.
package proto

type EnsureStateAccountRequest struct{}

type EnsureStateAccountResponse struct {
	Created bool `json:"created"`
}

type EnsureTallyAccountRequest struct{}

type EnsureTallyAccountResponse struct {
	Created           bool   `json:"created"`
	LastSubmittedSlot uint64 `json:"last_submitted_slot"`
}

type IsBriefAccountExistRequest struct {
	Slot uint64 `json:"slot"`
}

type IsBriefAccountExistResponse struct {
	Exists bool `json:"exists"`
}

// BriefAccount mirrors brief.Brief on the wire; settlement is a separate
// service boundary and should not import the indexer's internal type.
type BriefAccount struct {
	Slot              uint64 `json:"slot"`
	RootHash          []byte `json:"root_hash"`
	HashAccount       []byte `json:"hash_account"`
	TransactionNumber uint64 `json:"transaction_number"`
}

type CreateBriefAccountRequest struct {
	Brief     BriefAccount `json:"brief"`
	AttemptID string       `json:"attempt_id"`
}

type CreateBriefAccountResponse struct {
	Created bool `json:"created"`
}

type FetchBriefAccountRequest struct {
	Slot uint64 `json:"slot"`
}

type FetchBriefAccountResponse struct {
	Found bool         `json:"found"`
	Brief BriefAccount `json:"brief"`
}

type GetMaxSlotOnChainRequest struct{}

type GetMaxSlotOnChainResponse struct {
	Slot uint64 `json:"slot"`
}
