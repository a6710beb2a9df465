package model

// Agreement records that a signer accepted the off-chain agreement whose
// content fingerprint is IPFSHash. The ledger never interprets the fingerprint.
type Agreement struct {
	IPFSHash  string  `json:"ipfs_hash"`
	Signer    Address `json:"signer"`
	Timestamp int64   `json:"timestamp"` // unix seconds
	IsSigned  bool    `json:"is_signed"`
}
