package handlers

// Request and response shapes for the Secrets Manager json-1.1 protocol.
// Dates are epoch seconds with millisecond fraction; SecretBinary is a
// base64 blob on the wire.

// Tag is a key/value request tag
type Tag struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// Filter narrows a ListSecrets request
type Filter struct {
	Key    string   `json:"Key"`
	Values []string `json:"Values"`
}

type createSecretRequest struct {
	Name               string  `json:"Name"`
	Description        *string `json:"Description"`
	ClientRequestToken *string `json:"ClientRequestToken"`
	SecretString       *string `json:"SecretString"`
	SecretBinary       []byte  `json:"SecretBinary"`
	Tags               []Tag   `json:"Tags"`
}

type createSecretResponse struct {
	ARN       string `json:"ARN"`
	Name      string `json:"Name"`
	VersionID string `json:"VersionId"`
}

type putSecretValueRequest struct {
	SecretID           string   `json:"SecretId"`
	ClientRequestToken *string  `json:"ClientRequestToken"`
	SecretString       *string  `json:"SecretString"`
	SecretBinary       []byte   `json:"SecretBinary"`
	VersionStages      []string `json:"VersionStages"`
}

type putSecretValueResponse struct {
	ARN           string   `json:"ARN"`
	Name          string   `json:"Name"`
	VersionID     string   `json:"VersionId"`
	VersionStages []string `json:"VersionStages"`
}

type getSecretValueRequest struct {
	SecretID     string  `json:"SecretId"`
	VersionID    *string `json:"VersionId"`
	VersionStage *string `json:"VersionStage"`
}

type getSecretValueResponse struct {
	ARN           string   `json:"ARN"`
	Name          string   `json:"Name"`
	VersionID     string   `json:"VersionId"`
	SecretString  *string  `json:"SecretString,omitempty"`
	SecretBinary  []byte   `json:"SecretBinary,omitempty"`
	VersionStages []string `json:"VersionStages"`
	CreatedDate   float64  `json:"CreatedDate"`
}

type describeSecretRequest struct {
	SecretID string `json:"SecretId"`
}

type describeSecretResponse struct {
	ARN                string              `json:"ARN"`
	Name               string              `json:"Name"`
	Description        *string             `json:"Description,omitempty"`
	CreatedDate        float64             `json:"CreatedDate"`
	LastChangedDate    *float64            `json:"LastChangedDate,omitempty"`
	LastAccessedDate   *float64            `json:"LastAccessedDate,omitempty"`
	DeletedDate        *float64            `json:"DeletedDate,omitempty"`
	VersionIDsToStages map[string][]string `json:"VersionIdsToStages"`
	Tags               []Tag               `json:"Tags"`
}

type updateSecretRequest struct {
	SecretID           string  `json:"SecretId"`
	ClientRequestToken *string `json:"ClientRequestToken"`
	Description        *string `json:"Description"`
	SecretString       *string `json:"SecretString"`
	SecretBinary       []byte  `json:"SecretBinary"`
}

type updateSecretResponse struct {
	ARN       string  `json:"ARN"`
	Name      string  `json:"Name"`
	VersionID *string `json:"VersionId,omitempty"`
}

type deleteSecretRequest struct {
	SecretID                   string `json:"SecretId"`
	RecoveryWindowInDays       *int64 `json:"RecoveryWindowInDays"`
	ForceDeleteWithoutRecovery bool   `json:"ForceDeleteWithoutRecovery"`
}

type deleteSecretResponse struct {
	ARN          string  `json:"ARN"`
	Name         string  `json:"Name"`
	DeletionDate float64 `json:"DeletionDate"`
}

type restoreSecretRequest struct {
	SecretID string `json:"SecretId"`
}

type restoreSecretResponse struct {
	ARN  string `json:"ARN"`
	Name string `json:"Name"`
}

type tagResourceRequest struct {
	SecretID string `json:"SecretId"`
	Tags     []Tag  `json:"Tags"`
}

type untagResourceRequest struct {
	SecretID string   `json:"SecretId"`
	TagKeys  []string `json:"TagKeys"`
}

type updateSecretVersionStageRequest struct {
	SecretID            string  `json:"SecretId"`
	VersionStage        string  `json:"VersionStage"`
	RemoveFromVersionID *string `json:"RemoveFromVersionId"`
	MoveToVersionID     *string `json:"MoveToVersionId"`
}

type updateSecretVersionStageResponse struct {
	ARN  string `json:"ARN"`
	Name string `json:"Name"`
}

type listSecretsRequest struct {
	Filters                []Filter `json:"Filters"`
	IncludePlannedDeletion bool     `json:"IncludePlannedDeletion"`
	MaxResults             *int64   `json:"MaxResults"`
	NextToken              *string  `json:"NextToken"`
	SortOrder              *string  `json:"SortOrder"`
}

type secretListEntry struct {
	ARN                    string              `json:"ARN"`
	Name                   string              `json:"Name"`
	Description            *string             `json:"Description,omitempty"`
	CreatedDate            float64             `json:"CreatedDate"`
	DeletedDate            *float64            `json:"DeletedDate,omitempty"`
	LastAccessedDate       *float64            `json:"LastAccessedDate,omitempty"`
	LastChangedDate        *float64            `json:"LastChangedDate,omitempty"`
	SecretVersionsToStages map[string][]string `json:"SecretVersionsToStages"`
	Tags                   []Tag               `json:"Tags"`
}

type listSecretsResponse struct {
	SecretList []secretListEntry `json:"SecretList"`
	NextToken  *string           `json:"NextToken,omitempty"`
}

type listSecretVersionIdsRequest struct {
	SecretID          string  `json:"SecretId"`
	IncludeDeprecated bool    `json:"IncludeDeprecated"`
	MaxResults        *int64  `json:"MaxResults"`
	NextToken         *string `json:"NextToken"`
}

type secretVersionEntry struct {
	VersionID        string   `json:"VersionId"`
	CreatedDate      float64  `json:"CreatedDate"`
	LastAccessedDate *float64 `json:"LastAccessedDate,omitempty"`
	VersionStages    []string `json:"VersionStages"`
}

type listSecretVersionIdsResponse struct {
	ARN       string               `json:"ARN"`
	Name      string               `json:"Name"`
	Versions  []secretVersionEntry `json:"Versions"`
	NextToken *string              `json:"NextToken,omitempty"`
}

type batchGetSecretValueRequest struct {
	SecretIDList []string `json:"SecretIdList"`
}

type batchGetError struct {
	SecretID  string `json:"SecretId"`
	ErrorCode string `json:"ErrorCode"`
	Message   string `json:"Message"`
}

type batchGetSecretValueResponse struct {
	SecretValues []getSecretValueResponse `json:"SecretValues"`
	Errors       []batchGetError          `json:"Errors"`
}

type getRandomPasswordRequest struct {
	ExcludeCharacters       string `json:"ExcludeCharacters"`
	ExcludeLowercase        bool   `json:"ExcludeLowercase"`
	ExcludeUppercase        bool   `json:"ExcludeUppercase"`
	ExcludeNumbers          bool   `json:"ExcludeNumbers"`
	ExcludePunctuation      bool   `json:"ExcludePunctuation"`
	IncludeSpace            bool   `json:"IncludeSpace"`
	PasswordLength          *int64 `json:"PasswordLength"`
	RequireEachIncludedType bool   `json:"RequireEachIncludedType"`
}

type getRandomPasswordResponse struct {
	RandomPassword string `json:"RandomPassword"`
}
