package model

import (
	"fmt"
	"time"
)

// VoteKind is the stance a voter takes on a post.
type VoteKind string

const (
	VoteLike    VoteKind = "like"
	VoteDislike VoteKind = "dislike"
)

// ParseVoteKind accepts exactly "like" or "dislike".
func ParseVoteKind(s string) (VoteKind, error) {
	switch VoteKind(s) {
	case VoteLike, VoteDislike:
		return VoteKind(s), nil
	}
	return "", fmt.Errorf("invalid vote kind %q", s)
}

// VoterKind distinguishes the two identity spaces that may vote. They are
// never reconciled: the same person voting signed in and signed out counts
// as two voters.
type VoterKind string

const (
	VoterAnonymous VoterKind = "anonymous"
	VoterUser      VoterKind = "user"
)

// Voter identifies who cast a vote.
type Voter struct {
	Kind VoterKind
	ID   string
}

// AnonymousVoter wraps a client-generated, browser-persisted id.
func AnonymousVoter(clientID string) Voter {
	return Voter{Kind: VoterAnonymous, ID: clientID}
}

// AuthenticatedVoter wraps a user id taken from a valid session.
func AuthenticatedVoter(userID string) Voter {
	return Voter{Kind: VoterUser, ID: userID}
}

func (v Voter) String() string {
	return string(v.Kind) + ":" + v.ID
}

// Vote is one voter's stance on one post. (Voter, PostID) is unique.
type Vote struct {
	ID        string
	PostID    string
	Voter     Voter
	Kind      VoteKind
	CreatedAt time.Time
	UpdatedAt time.Time
}
