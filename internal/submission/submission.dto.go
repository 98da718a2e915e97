package submission

type CreateSubmissionRequest struct {
	ChallengeID       string `json:"challengeId"`
	ChallengeName     string `json:"challengeName"`
	IsChallengeExists bool   `json:"isChallengeExists"`
	Text              string `json:"text"`
}

type UpdateStatusRequest struct {
	Status  Status `json:"status"`
	Remarks string `json:"remarks,omitempty"`
}
