package domain

// ProgressStatus is the tri-state classification of a completion fraction.
type ProgressStatus string

const (
	StatusNotStarted ProgressStatus = "Not started"
	StatusInProgress ProgressStatus = "In progress"
	StatusCompleted  ProgressStatus = "Completed"
)

// ParseProgressStatus accepts the display names case-insensitively.
func ParseProgressStatus(s string) (ProgressStatus, bool) {
	switch normalize(s) {
	case "not started", "not_started", "notstarted":
		return StatusNotStarted, true
	case "in progress", "in_progress", "inprogress":
		return StatusInProgress, true
	case "completed":
		return StatusCompleted, true
	}
	return "", false
}

// ItemType discriminates the dashboard item union.
type ItemType string

const (
	ItemCourse       ItemType = "course"
	ItemLearningPath ItemType = "learning_path"
)

// ParseItemType maps "course" and "learning_path"; anything else is rejected.
func ParseItemType(s string) (ItemType, bool) {
	switch normalize(s) {
	case string(ItemCourse):
		return ItemCourse, true
	case string(ItemLearningPath), "learning-path", "path":
		return ItemLearningPath, true
	}
	return "", false
}
