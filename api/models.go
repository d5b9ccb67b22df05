package api

import "encoding/json"

// Auth

type Token struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType,omitempty"`
}

type AuthResponse struct {
	Tokens    Token  `json:"tokens"`
	IsNewUser bool   `json:"isNewUser"`
	UserID    string `json:"userId"`
}

type User struct {
	ID        string `json:"id,omitempty"`
	CountryID string `json:"countryId,omitempty"`
	CityID    string `json:"cityId,omitempty"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Age       int    `json:"age,omitempty"`
	JobTitle  string `json:"jobTitle,omitempty"`
	Photo     string `json:"photo,omitempty"`
}

// LoginSession is one signed-in device as listed by the sessions endpoint.
type LoginSession struct {
	ID        string  `json:"id"`
	IPAddress *string `json:"ipAddress,omitempty"`
	UserAgent *string `json:"userAgent,omitempty"`
	CreatedAt string  `json:"createdAt"`
	ExpiresAt string  `json:"expiresAt"`
	IsCurrent bool    `json:"isCurrent,omitempty"`
}

// Places

type Country struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

type City struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CityDetail struct {
	City
	Country Country `json:"country"`
}

// Days

type LearningItem struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

type LearningProgress struct {
	LearningItem LearningItem `json:"learningItem"`
	TimeInvolved int          `json:"timeInvolved"`
}

type DayListItem struct {
	Timestamp          int64              `json:"timestamp"`
	Description        string             `json:"description,omitempty"`
	Steps              int                `json:"steps"`
	Starred            bool               `json:"starred"`
	MainImage          string             `json:"mainImage,omitempty"`
	City               City               `json:"city"`
	LearningProgresses []LearningProgress `json:"learningProgresses,omitempty"`
	Exists             bool               `json:"exists"`
}

type DayDetail struct {
	Timestamp          int64              `json:"timestamp"`
	Content            string             `json:"content"`
	City               City               `json:"city"`
	Description        string             `json:"description,omitempty"`
	Steps              int                `json:"steps"`
	Starred            bool               `json:"starred"`
	MainImage          string             `json:"mainImage,omitempty"`
	CreatedAt          string             `json:"createdAt"`
	UpdatedAt          string             `json:"updatedAt"`
	Images             []string           `json:"images,omitempty"`
	LearningProgresses []LearningProgress `json:"learningProgresses,omitempty"`
}

type DayCreate struct {
	CityID             string             `json:"cityId"`
	Description        string             `json:"description,omitempty"`
	Content            string             `json:"content"`
	Steps              *int               `json:"steps,omitempty"`
	MainImage          string             `json:"mainImage,omitempty"`
	Images             []string           `json:"images,omitempty"`
	LearningProgresses []LearningProgress `json:"learningProgresses,omitempty"`
}

// DayUpdate only sends the fields that are set.
type DayUpdate struct {
	CityID             *string            `json:"cityId,omitempty"`
	Description        *string            `json:"description,omitempty"`
	Content            *string            `json:"content,omitempty"`
	Steps              *int               `json:"steps,omitempty"`
	Starred            *bool              `json:"starred,omitempty"`
	MainImage          *string            `json:"mainImage,omitempty"`
	Images             []string           `json:"images,omitempty"`
	LearningProgresses []LearningProgress `json:"learningProgresses,omitempty"`
}

// Tags and trackables

type Icon struct {
	Name  string `json:"name"`
	Style string `json:"style,omitempty"`
}

type Tag struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Icon  *Icon  `json:"icon,omitempty"`
}

type TrackableType struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	ValueType   string         `json:"valueType"`
	Icon        string         `json:"icon,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

type Trackable struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

type TrackableDetail struct {
	Trackable
	Meta map[string]any `json:"meta"`
}

type TrackableCreate struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Icon        string         `json:"icon,omitempty"`
	TypeID      string         `json:"typeId"`
	Meta        map[string]any `json:"meta,omitempty"`
}

type TrackableUpdate struct {
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	Icon        *string        `json:"icon,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// Months

type Month struct {
	Year        int      `json:"year"`
	Month       int      `json:"month"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Content     string   `json:"content,omitempty"`
	MainImage   string   `json:"mainImage,omitempty"`
	Images      []string `json:"images,omitempty"`
}

// Feed

type Insight struct {
	ID            string `json:"id"`
	UserID        string `json:"userId"`
	ModelID       string `json:"modelId"`
	InsightTypeID string `json:"insightTypeId"`
	DateBegin     string `json:"dateBegin"`
	Description   string `json:"description"`
	Icon          *Icon  `json:"icon,omitempty"`
	Content       string `json:"content"`
	CreatedAt     string `json:"createdAt"`
}

type Suggestion struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	ModelID     string `json:"modelId"`
	Description string `json:"description"`
	Icon        *Icon  `json:"icon,omitempty"`
	Date        string `json:"date"`
	Content     string `json:"content"`
}

// Workspace

// WorkspaceSettings holds per-page backgrounds. A nil field has no background.
type WorkspaceSettings struct {
	DashboardBackground *string `json:"dashboardBackground"`
	DayBackground       *string `json:"dayBackground"`
	SearchBackground    *string `json:"searchBackground"`
	SettingsBackground  *string `json:"settingsBackground"`
}

// BackgroundChange is one field of a WorkspacePatch. It either sets a background or clears it.
type BackgroundChange struct {
	key *string
}

func SetBackground(key string) *BackgroundChange {
	return &BackgroundChange{key: &key}
}

func ClearBackground() *BackgroundChange {
	return &BackgroundChange{}
}

func (c BackgroundChange) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.key)
}

// WorkspacePatch changes some backgrounds. Nil fields are left out of the request and keep
// their stored value.
type WorkspacePatch struct {
	DashboardBackground *BackgroundChange `json:"dashboardBackground,omitempty"`
	DayBackground       *BackgroundChange `json:"dayBackground,omitempty"`
	SearchBackground    *BackgroundChange `json:"searchBackground,omitempty"`
	SettingsBackground  *BackgroundChange `json:"settingsBackground,omitempty"`
}

// Apply returns ws with the patch applied.
func (p WorkspacePatch) Apply(ws WorkspaceSettings) WorkspaceSettings {
	apply := func(dst **string, c *BackgroundChange) {
		if c == nil {
			return
		}
		if c.key == nil {
			*dst = nil
			return
		}
		v := *c.key
		*dst = &v
	}
	apply(&ws.DashboardBackground, p.DashboardBackground)
	apply(&ws.DayBackground, p.DayBackground)
	apply(&ws.SearchBackground, p.SearchBackground)
	apply(&ws.SettingsBackground, p.SettingsBackground)
	return ws
}

// Storage

type UploadIntent string

const (
	IntentAvatar         UploadIntent = "avatar"
	IntentDayMain        UploadIntent = "day_main"
	IntentDayImage       UploadIntent = "day_image"
	IntentMonthImage     UploadIntent = "month_image"
	IntentWorkspaceAsset UploadIntent = "workspace_asset"
)

type PresignPutRequest struct {
	Intent           UploadIntent `json:"intent"`
	Filename         string       `json:"filename"`
	ContentType      string       `json:"contentType"`
	DayTimestamp     *int64       `json:"dayTimestamp,omitempty"`
	Year             *int         `json:"year,omitempty"`
	Month            *int         `json:"month,omitempty"`
	WorkspacePageKey string       `json:"workspacePageKey,omitempty"`
}

type PresignPutResponse struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
}

type PresignGetRequest struct {
	ObjectKey string `json:"objectKey"`
}

type PresignGetResponse struct {
	DownloadURL string `json:"downloadUrl"`
}
