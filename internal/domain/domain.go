package domain

// Roles carried by directory users.
const (
	RoleAdmin    = "ADMIN"
	RoleManager  = "MANAGER"
	RoleEmployee = "EMPLOYEE"
)

// Roles a template step can be reviewed by (lowercase on the wire,
// matching the template schema).
const (
	StepRoleAdmin    = "admin"
	StepRoleManager  = "manager"
	StepRoleEmployee = "employee"
)

// Instance status values.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusRejected  = "rejected"
)

// Employee-controlled project status values.
const (
	ProjectStarted   = "started"
	ProjectPending   = "pending"
	ProjectOngoing   = "ongoing"
	ProjectCompleted = "completed"
)

// Review status values shared by tasks, updates and the completion review.
const (
	ReviewPending  = "pending"
	ReviewApproved = "approved"
	ReviewRejected = "rejected"
	ReviewAccepted = "accepted"
)

type User struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	PasswordHash  string  `json:"-"`
	Role          string  `json:"role" enum:"ADMIN,MANAGER,EMPLOYEE"`
	ManagerID     *string `json:"managerId,omitempty"`
	DateOfJoining string  `json:"dateOfJoining" format:"date-time"`
}

type Step struct {
	StepOrder        int    `json:"stepOrder"`
	Title            string `json:"title"`
	AssignedRole     string `json:"assignedRole" enum:"admin,manager,employee"`
	StepDurationDays int    `json:"stepDurationDays,omitempty"`
}

type WorkflowTemplate struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description,omitempty"`
	Steps            []Step  `json:"steps"`
	AllottedTimeDays int     `json:"allottedTimeDays"`
	CreatedBy        *string `json:"createdBy,omitempty"`
	CreatedAt        string  `json:"createdAt" format:"date-time"`
}

// Task is one checklist item cloned from a template step. Immutable after
// the clone except status, managerComment and reviewedAt, which a reviewer
// matching AssignedToRole sets exactly once.
type Task struct {
	StepOrder      int     `json:"stepOrder"`
	Title          string  `json:"title"`
	AssignedToRole string  `json:"assignedToRole" enum:"admin,manager,employee"`
	Status         string  `json:"status" enum:"pending,approved,rejected"`
	ManagerComment string  `json:"managerComment,omitempty"`
	ReviewedAt     *string `json:"reviewedAt,omitempty" format:"date-time"`
}

// Update is an employee-authored note. The review sub-fields are persisted
// but no operation mutates them yet.
type Update struct {
	Date           string  `json:"date" format:"date-time"`
	Note           string  `json:"note"`
	CreatedBy      string  `json:"createdBy"`
	Status         string  `json:"status" enum:"pending,approved,rejected"`
	ManagerComment string  `json:"managerComment,omitempty"`
	ReviewedAt     *string `json:"reviewedAt,omitempty" format:"date-time"`
	ReviewedBy     *string `json:"reviewedBy,omitempty"`
}

type Document struct {
	OriginalName string  `json:"originalName"`
	FileName     string  `json:"fileName"`
	URL          string  `json:"url"`
	UploadedAt   string  `json:"uploadedAt" format:"date-time"`
	UploadedBy   *string `json:"uploadedBy,omitempty"`
	MimeType     string  `json:"mimeType,omitempty"`
	Size         int64   `json:"size,omitempty"`
}

type CompletionReview struct {
	Status       string  `json:"status" enum:"pending,accepted,rejected"`
	Remark       string  `json:"remark,omitempty"`
	ReviewedAt   *string `json:"reviewedAt,omitempty" format:"date-time"`
	ReviewedBy   *string `json:"reviewedBy,omitempty"`
	ReviewerRole string  `json:"reviewerRole,omitempty"`
}

// OnboardingInstance is the aggregate root. Version is a monotonic counter;
// every mutation is a compare-and-swap against the version that was read.
type OnboardingInstance struct {
	ID                 string            `json:"id"`
	EmployeeID         string            `json:"employeeId"`
	WorkflowTemplateID string            `json:"workflowTemplateId"`
	AssignedBy         string            `json:"assignedBy"`
	ManagerID          *string           `json:"managerId,omitempty"`
	Tasks              []Task            `json:"tasks"`
	Progress           int               `json:"progress"`
	Status             string            `json:"status" enum:"active,completed,rejected"`
	ProjectStatus      string            `json:"projectStatus" enum:"started,pending,ongoing,completed"`
	StartedAt          string            `json:"startedAt" format:"date-time"`
	CompletedAt        *string           `json:"completedAt,omitempty" format:"date-time"`
	Deadline           *string           `json:"deadline,omitempty" format:"date-time"`
	Updates            []Update          `json:"updates"`
	Documents          []Document        `json:"documents"`
	CompletionReview   *CompletionReview `json:"completionReview,omitempty"`
	Version            int64             `json:"version"`
}

type Notification struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Message   string `json:"message"`
	IsRead    bool   `json:"isRead"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}
