package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/sakif/soundscape/internal/apperror"
	"github.com/sakif/soundscape/internal/metrics"
	"github.com/sakif/soundscape/internal/model"
	"github.com/sakif/soundscape/internal/repository"
	"github.com/sakif/soundscape/internal/validation"
)

const (
	MsgPostSubmitted = "Post submitted successfully"
	MsgVoteRecorded  = "Vote recorded successfully"

	msgPostNotFound = "Post not found"
)

// PostInput is a community post submission. Every field but ZipCode is
// required; Date is YYYY-MM-DD and Time is HH:MM.
type PostInput struct {
	EventTitle validation.Text `json:"eventTitle" label:"Event title" validate:"notblank"`
	ArtistName validation.Text `json:"artistName" label:"Artist name" validate:"notblank"`
	Genre      validation.Text `json:"genre" label:"Genre" validate:"notblank"`
	Date       validation.Text `json:"date" label:"Date" validate:"notblank,ymd"`
	Time       validation.Text `json:"time" label:"Time" validate:"notblank,hhmm"`
	Venue      validation.Text `json:"venue" label:"Venue" validate:"notblank"`
	Address    validation.Text `json:"address" label:"Address" validate:"notblank"`
	City       validation.Text `json:"city" label:"City" validate:"notblank"`
	State      validation.Text `json:"state" label:"State" validate:"notblank"`
	ZipCode    validation.Text `json:"zipCode"`
}

// VoteResult is the post's tally after a vote plus the voter's standing
// vote.
type VoteResult struct {
	Post     model.PostStats
	UserVote model.VoteKind
}

// PostService handles community posts and their like/dislike votes.
//
// VOTING RULES:
//   - one vote per (voter, post); anonymous and signed-in voters are
//     separate identity spaces
//   - a different kind replaces the stored vote in place
//   - the same kind again is a no-op (votes are never toggled off)
type PostService struct {
	posts  repository.PostRepository
	votes  repository.VoteRepository
	logger *slog.Logger
}

func NewPostService(posts repository.PostRepository, votes repository.VoteRepository, logger *slog.Logger) *PostService {
	return &PostService{posts: posts, votes: votes, logger: logger}
}

// Submit validates and stores a post. Validation errors list every
// violated field under the summary "Validation failed".
func (s *PostService) Submit(ctx context.Context, in PostInput) (*model.PostStats, error) {
	if err := validation.Struct(in, "Validation failed"); err != nil {
		return nil, err
	}

	post := &model.Post{
		EventTitle: strings.TrimSpace(in.EventTitle.String()),
		ArtistName: strings.TrimSpace(in.ArtistName.String()),
		Genre:      strings.TrimSpace(in.Genre.String()),
		Date:       strings.TrimSpace(in.Date.String()),
		Time:       strings.TrimSpace(in.Time.String()),
		Venue:      strings.TrimSpace(in.Venue.String()),
		Address:    strings.TrimSpace(in.Address.String()),
		City:       strings.TrimSpace(in.City.String()),
		State:      strings.TrimSpace(in.State.String()),
		ZipCode:    strings.TrimSpace(in.ZipCode.String()),
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("service/post: creating: %w", err)
	}

	s.logger.InfoContext(ctx, "post submitted", slog.String("postID", post.ID))
	stats := model.NewPostStats(*post, 0, 0)
	return &stats, nil
}

// List returns every post with its tally, highest ratio first. Posts with
// equal ratios are newest first.
func (s *PostService) List(ctx context.Context) ([]model.PostStats, error) {
	stats, err := s.posts.ListPostStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/post: listing: %w", err)
	}
	if stats == nil {
		return []model.PostStats{}, nil
	}

	slices.Reverse(stats)
	slices.SortStableFunc(stats, func(a, b model.PostStats) int {
		switch {
		case a.Ratio > b.Ratio:
			return -1
		case a.Ratio < b.Ratio:
			return 1
		}
		return 0
	})
	return stats, nil
}

// Vote records voter's stance on a post and returns the new tally.
func (s *PostService) Vote(ctx context.Context, postID string, voter model.Voter, kind string) (*VoteResult, error) {
	if strings.TrimSpace(voter.ID) == "" {
		return nil, apperror.ValidationFailed("voterId", "User ID is required")
	}
	voteKind, err := model.ParseVoteKind(kind)
	if err != nil {
		return nil, apperror.ValidationFailed("voteType", `Vote type must be "like" or "dislike"`)
	}

	post, err := s.getPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	existing, err := s.votes.GetVote(ctx, post.ID, voter)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		existing = nil
	case err != nil:
		return nil, fmt.Errorf("service/post: reading vote: %w", err)
	}

	if existing == nil || existing.Kind != voteKind {
		vote := &model.Vote{PostID: post.ID, Voter: voter, Kind: voteKind}
		if existing != nil {
			vote.ID = existing.ID
		}
		if err := s.votes.UpsertVote(ctx, vote); err != nil {
			return nil, fmt.Errorf("service/post: saving vote: %w", err)
		}
		metrics.VotesTotal.WithLabelValues(string(voter.Kind), string(voteKind)).Inc()
	}

	likes, dislikes, err := s.posts.CountVotes(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("service/post: counting votes: %w", err)
	}

	return &VoteResult{
		Post:     model.NewPostStats(*post, likes, dislikes),
		UserVote: voteKind,
	}, nil
}

// GetUserVote returns the voter's current kind on a post, or "" if the
// voter has not voted.
func (s *PostService) GetUserVote(ctx context.Context, postID string, voter model.Voter) (model.VoteKind, error) {
	if strings.TrimSpace(voter.ID) == "" {
		return "", apperror.ValidationFailed("voterId", "User ID is required")
	}

	vote, err := s.votes.GetVote(ctx, postID, voter)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("service/post: reading vote: %w", err)
	}
	return vote.Kind, nil
}

func (s *PostService) getPost(ctx context.Context, id string) (*model.Post, error) {
	post, err := s.posts.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage(msgPostNotFound)
		}
		return nil, fmt.Errorf("service/post: fetching %s: %w", id, err)
	}
	return post, nil
}
