package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"zenithAPI/internal/media"
	"zenithAPI/internal/submission"
	"zenithAPI/middleware"
	"zenithAPI/services"
)

const (
	uploadTimeout    = 60 * time.Second
	maxUploadBytes   = 200 << 20
	multipartMemory  = 32 << 20
	maxTextProofSize = 5000
)

type SubmissionHandler struct {
	submissionService *services.SubmissionService
	userService       *services.UserService
	media             media.Store
	isAdmin           func(clerkID string) bool
}

func NewSubmissionHandler(
	submissionService *services.SubmissionService,
	userService *services.UserService,
	mediaStore media.Store,
	isAdmin func(clerkID string) bool,
) *SubmissionHandler {
	return &SubmissionHandler{
		submissionService: submissionService,
		userService:       userService,
		media:             mediaStore,
		isAdmin:           isAdmin,
	}
}

// CreateSubmission accepts multipart/form-data with the request fields plus
// "images" and "videos" files, or a JSON body for text-only proofs.
func (h *SubmissionHandler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), uploadTimeout)
	defer cancel()

	u := currentUser(ctx, w, r, h.userService)
	if u == nil {
		return
	}

	var req submission.CreateSubmissionRequest
	var proofs submission.Proofs
	var uploads []upload

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid multipart form")
			return
		}
		defer r.MultipartForm.RemoveAll()

		req.ChallengeID = r.FormValue("challengeId")
		req.ChallengeName = r.FormValue("challengeName")
		req.Text = r.FormValue("text")
		if raw := r.FormValue("isChallengeExists"); raw != "" {
			exists, err := strconv.ParseBool(raw)
			if err != nil {
				respondWithError(w, http.StatusBadRequest, "Field 'isChallengeExists' must be true or false")
				return
			}
			req.IsChallengeExists = exists
		}

		images := r.MultipartForm.File["images"]
		videos := r.MultipartForm.File["videos"]
		if len(images) > submission.MaxImages || len(videos) > submission.MaxVideos {
			respondWithError(w, http.StatusBadRequest,
				fmt.Sprintf("At most %d images and %d videos per submission", submission.MaxImages, submission.MaxVideos))
			return
		}

		var err error
		if uploads, err = planUploads(u.ID, images, videos); err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		for _, up := range uploads {
			if up.kind == media.KindImage {
				proofs.Images = append(proofs.Images, up.key)
			} else {
				proofs.Videos = append(proofs.Videos, up.key)
			}
		}
	}

	if len(req.Text) > maxTextProofSize {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Text proof is limited to %d characters", maxTextProofSize))
		return
	}
	proofs.Text = req.Text

	// Nothing is stored until the request is known to be acceptable.
	if err := h.submissionService.Validate(ctx, &req, proofs); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	refs, err := h.saveUploads(ctx, uploads)
	if err != nil {
		h.discard(refs)
		respondWithServiceError(w, r, err)
		return
	}
	proofs.Images, proofs.Videos = nil, nil
	for i, up := range uploads {
		if up.kind == media.KindImage {
			proofs.Images = append(proofs.Images, refs[i])
		} else {
			proofs.Videos = append(proofs.Videos, refs[i])
		}
	}

	created, err := h.submissionService.Create(ctx, u.ID, &req, proofs)
	if err != nil {
		h.discard(refs)
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// upload is a proof file with the storage key it will be saved under.
type upload struct {
	kind media.Kind
	key  string
	file *multipart.FileHeader
}

// planUploads assigns keys to every file, rejecting unsupported types before
// anything is written.
func planUploads(userID string, images, videos []*multipart.FileHeader) ([]upload, error) {
	out := make([]upload, 0, len(images)+len(videos))
	add := func(kind media.Kind, files []*multipart.FileHeader) error {
		for _, fh := range files {
			key, err := media.NewKey(kind, userID, fh.Filename)
			if err != nil {
				return err
			}
			out = append(out, upload{kind: kind, key: key, file: fh})
		}
		return nil
	}
	if err := add(media.KindImage, images); err != nil {
		return nil, err
	}
	if err := add(media.KindVideo, videos); err != nil {
		return nil, err
	}
	return out, nil
}

// saveUploads stores files in order. On error it returns the references
// saved so far so the caller can discard them.
func (h *SubmissionHandler) saveUploads(ctx context.Context, uploads []upload) ([]string, error) {
	refs := make([]string, 0, len(uploads))
	for _, up := range uploads {
		f, err := up.file.Open()
		if err != nil {
			return refs, fmt.Errorf("failed to open upload %s: %w", up.file.Filename, err)
		}
		ref, err := h.media.Save(ctx, up.key, up.file.Header.Get("Content-Type"), f)
		f.Close()
		if err != nil {
			return refs, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// discard removes stored proofs of a submission that was not created. It
// uses a fresh context since the request one may have expired.
func (h *SubmissionHandler) discard(refs []string) {
	if len(refs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	for _, ref := range refs {
		if err := h.media.Delete(ctx, ref); err != nil {
			log.WithError(err).WithField("ref", ref).Warn("Failed to discard orphaned upload")
		}
	}
}

// UpdateSubmissionStatus is the manual review path. Reviewing a submission
// that is no longer PENDING is a client error.
func (h *SubmissionHandler) UpdateSubmissionStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req submission.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id := mux.Vars(r)["id"]
	settled, err := h.submissionService.Settle(ctx, id, submission.Status(strings.ToUpper(string(req.Status))), req.Remarks, submission.SourceManual)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	clerkID, _ := middleware.GetClerkID(ctx)
	log.WithFields(log.Fields{"submission_id": id, "reviewer": clerkID, "status": settled.Status}).Info("Submission reviewed")
	respondWithJSON(w, http.StatusOK, settled)
}

func (h *SubmissionHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	ownerID := ""
	if !h.isAdmin(clerkID) {
		u := currentUser(ctx, w, r, h.userService)
		if u == nil {
			return
		}
		ownerID = u.ID
	}

	sub, err := h.submissionService.Get(ctx, ownerID, mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sub)
}

func (h *SubmissionHandler) GetRecentSubmissions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	u := currentUser(ctx, w, r, h.userService)
	if u == nil {
		return
	}

	subs, err := h.submissionService.ListRecent(ctx, u.ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, subs)
}

func (h *SubmissionHandler) GetSubmissionForChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	u := currentUser(ctx, w, r, h.userService)
	if u == nil {
		return
	}

	challengeID := r.URL.Query().Get("challengeId")
	if challengeID == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'challengeId' is required")
		return
	}

	sub, err := h.submissionService.GetForChallenge(ctx, u.ID, challengeID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sub)
}
