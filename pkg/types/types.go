package types

import (
	"encoding/json"
	"math/big"
	"time"
)

// BeatListing is the record-store entry for a beat
type BeatListing struct {
	ID              string    `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	Description     string    `json:"description" db:"description"`
	Genre           string    `json:"genre" db:"genre"`
	BPM             int       `json:"bpm" db:"bpm"`
	Key             string    `json:"key" db:"musical_key"`
	AudioFile       string    `json:"audioFile" db:"audio_file"`
	ImageFile       string    `json:"imageFile" db:"image_file"`
	Price           string    `json:"price" db:"price"` // decimal string in the chain's native currency
	CreatorAddress  string    `json:"creatorAddress" db:"creator_address"`
	OwnerAddress    *string   `json:"ownerAddress,omitempty" db:"owner_address"`
	TokenID         *string   `json:"tokenId,omitempty" db:"token_id"` // nil until minted
	ContractAddress *string   `json:"contractAddress,omitempty" db:"contract_address"`
	IsListed        bool      `json:"isListed" db:"is_listed"`
	PurchaseTxHash  *string   `json:"purchaseTransactionHash,omitempty" db:"purchase_tx_hash"`
	Version         int64     `json:"version" db:"version"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

// Clone returns a deep copy so callers never share pointer fields with a store
func (b *BeatListing) Clone() *BeatListing {
	if b == nil {
		return nil
	}
	c := *b
	c.OwnerAddress = cloneString(b.OwnerAddress)
	c.TokenID = cloneString(b.TokenID)
	c.ContractAddress = cloneString(b.ContractAddress)
	c.PurchaseTxHash = cloneString(b.PurchaseTxHash)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// ReceiptStatus is the outcome of a mined transaction
type ReceiptStatus string

const (
	ReceiptSuccess ReceiptStatus = "success"
	ReceiptFailure ReceiptStatus = "failure"
)

// Receipt is a chain-agnostic confirmation record for a mined transaction
type Receipt struct {
	Hash        string        `json:"hash"`
	Status      ReceiptStatus `json:"status"`
	BlockNumber uint64        `json:"blockNumber"`
	From        string        `json:"from"` // sender, i.e. the buyer for purchases
	To          string        `json:"to,omitempty"`
}

// Successful reports whether the transaction executed without reverting
func (r *Receipt) Successful() bool {
	return r != nil && r.Status == ReceiptSuccess
}

// BeatOnChainView is the contract's view of a minted beat
type BeatOnChainView struct {
	TokenID     *big.Int `json:"tokenId"`
	Creator     string   `json:"creator"`
	Owner       string   `json:"owner"`
	Price       *big.Int `json:"price"` // smallest native unit
	MetadataURI string   `json:"metadataURI"`
	AudioHash   string   `json:"audioHash"`
	IsListed    bool     `json:"isListed"`
}

// CreateBeatRequest is the body of POST /api/beats
type CreateBeatRequest struct {
	Title          string `json:"title" validate:"required,max=200"`
	Description    string `json:"description" validate:"max=5000"`
	Price          string `json:"price" validate:"required"`
	AudioFile      string `json:"audioFile" validate:"required"`
	ImageFile      string `json:"imageFile"`
	Genre          string `json:"genre"`
	BPM            int    `json:"bpm" validate:"gte=0,lte=400"`
	Key            string `json:"key"`
	CreatorAddress string `json:"creatorAddress" validate:"required"`
}

// PurchaseRequest is the body of POST /api/purchase
type PurchaseRequest struct {
	BeatID          string `json:"beatId" validate:"required"`
	BuyerAddress    string `json:"buyerAddress" validate:"required"`
	TransactionHash string `json:"transactionHash" validate:"required"`
	ChainID         string `json:"chainId"`
}

// PurchaseResponse is returned by POST /api/purchase
type PurchaseResponse struct {
	Success bool         `json:"success"`
	Outcome string       `json:"outcome"`
	Beat    *BeatListing `json:"beat,omitempty"`
}

// UploadRequest is the body of POST /api/upload
type UploadRequest struct {
	File json.RawMessage `json:"file" validate:"required"`
	Type string          `json:"type" validate:"required"`
}

// UploadResponse is returned by POST /api/upload
type UploadResponse struct {
	IPFSHash string `json:"ipfsHash"`
}

// ErrorResponse is the JSON error envelope of the HTTP API
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}
