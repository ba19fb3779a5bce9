package models

import "time"

// IssuedCertificate is the ledger entry written after a certificate has been
// generated and saved.
type IssuedCertificate struct {
	Id         string    `firestore:"-" json:"id"`
	TreeID     string    `firestore:"treeId" json:"treeId"`
	Owner      string    `firestore:"owner" json:"owner"`
	Occasion   string    `firestore:"occasion,omitempty" json:"occasion,omitempty"`
	ExpiryDate string    `firestore:"expiryDate,omitempty" json:"expiryDate,omitempty"`
	FileName   string    `firestore:"fileName" json:"fileName"`
	Location   string    `firestore:"location" json:"location"` // where the sink put the document
	SizeBytes  int       `firestore:"sizeBytes" json:"sizeBytes"`
	IssuedAt   time.Time `firestore:"issuedAt" json:"issuedAt"`
}

// NewIssuedCertificate builds a ledger entry for a finished download.
func NewIssuedCertificate(data *CertificateData, fileName, location string, size int, issuedAt time.Time) *IssuedCertificate {
	return &IssuedCertificate{
		TreeID:     data.Certificate.TreeID,
		Owner:      data.Certificate.Owner,
		Occasion:   data.Certificate.Occasion,
		ExpiryDate: data.Certificate.ExpiryDate,
		FileName:   fileName,
		Location:   location,
		SizeBytes:  size,
		IssuedAt:   issuedAt,
	}
}

// CacheEntry is a generated document held by the document cache.
type CacheEntry struct {
	Data    []byte
	Expires time.Time
}
