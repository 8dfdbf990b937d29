package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/soundscape/internal/auth"
	"github.com/sakif/soundscape/internal/model"
	"github.com/sakif/soundscape/internal/service"
)

// PostHandler serves community event posts and their votes.
//
// VOTER IDENTITY:
// A request with a valid bearer token votes as that user. Anyone else votes
// with the opaque id their browser generated ("voterId", or the legacy
// "userId"). The two spaces never mix, so the same string used signed in
// and signed out counts as two voters.
type PostHandler struct {
	posts *service.PostService
}

func NewPostHandler(posts *service.PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

type voteRequest struct {
	VoterID  string `json:"voterId"`
	UserID   string `json:"userId"`
	VoteKind string `json:"voteKind"`
	VoteType string `json:"voteType"`
}

// PostListResponse lists every post, best rated first.
type PostListResponse struct {
	Posts []model.PostStats `json:"posts"`
}

// PostResponse wraps one post with its tally.
type PostResponse struct {
	Message string           `json:"message"`
	Post    *model.PostStats `json:"post"`
}

// VoteResponse is the tally after a vote.
type VoteResponse struct {
	Message  string          `json:"message"`
	Post     model.PostStats `json:"post"`
	UserVote model.VoteKind  `json:"userVote"`
}

// UserVoteResponse is the caller's standing vote; null if none.
type UserVoteResponse struct {
	UserVote *model.VoteKind `json:"userVote"`
}

// HandleList returns every post sorted by ratio.
//
// HTTP: GET /api/posts
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PostListResponse{Posts: posts})
}

// HandleSubmit stores a community post.
//
// HTTP: POST /api/posts
// RESPONSE: 201 {"message": "...", "post": {...}}, or 400 listing every
// invalid field under "errors".
func (h *PostHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var in service.PostInput
	if !decodeJSON(w, r, &in) {
		return
	}

	post, err := h.posts.Submit(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, PostResponse{Message: service.MsgPostSubmitted, Post: post})
}

// HandleVote records a like or dislike.
//
// HTTP: POST /api/posts/{postID}/vote
// REQUEST BODY: {"voterId": "...", "voteKind": "like"}
func (h *PostHandler) HandleVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	kind := req.VoteKind
	if kind == "" {
		kind = req.VoteType
	}

	res, err := h.posts.Vote(r.Context(), chi.URLParam(r, "postID"), voterFor(r, firstNonEmpty(req.VoterID, req.UserID)), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, VoteResponse{
		Message:  service.MsgVoteRecorded,
		Post:     res.Post,
		UserVote: res.UserVote,
	})
}

// HandleGetVote returns the caller's vote on a post.
//
// HTTP: GET /api/posts/{postID}/vote?voterId=...
func (h *PostHandler) HandleGetVote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	voter := voterFor(r, firstNonEmpty(q.Get("voterId"), q.Get("userId")))

	kind, err := h.posts.GetUserVote(r.Context(), chi.URLParam(r, "postID"), voter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var resp UserVoteResponse
	if kind != "" {
		resp.UserVote = &kind
	}
	writeJSON(w, http.StatusOK, resp)
}

// voterFor resolves who is voting. Post routes use auth.OptionalAuth, so
// the session may be in any state; only a valid one is trusted.
func voterFor(r *http.Request, clientID string) model.Voter {
	if userID, ok := auth.UserIDFromContext(r.Context()); ok {
		return model.AuthenticatedVoter(userID)
	}
	return model.AnonymousVoter(clientID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
