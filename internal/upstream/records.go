package upstream

// Identity is who the credential belongs to. The snake_case JSON names match
// the persisted identity snapshot written by earlier releases, which must
// stay readable.
type Identity struct {
	Username         string `json:"username"`
	UserName         string `json:"user_name"`
	UserUID          string `json:"user_uid"`
	UserID           string `json:"user_id"`
	OrganizationName string `json:"organization_name,omitempty"`
	IdentityTypeName string `json:"identity_type_name,omitempty"`
}

// Profile carries the dashboard statistics of the personal-data service.
type Profile struct {
	CardBalance   string `json:"cardBalance"`
	BookLoanCount int    `json:"bookLoanCount"`
	ResearchCount int    `json:"researchCount"`
}

// CourseGrade is one course result inside a semester group.
type CourseGrade struct {
	ID           string  `json:"id"`
	StdCode      string  `json:"stdCode"`
	CourseName   string  `json:"courseName"`
	Credit       float64 `json:"credit"`
	GP           float64 `json:"gp"`
	Score        float64 `json:"score"`
	ScoreText    string  `json:"scoreText"`
	TestCategory *string `json:"testCategory"`
	SemesterYear string  `json:"semesterYear"`
	SemesterCode string  `json:"semesterCode"`
	SemesterName string  `json:"semesterName"`
	Project      int     `json:"project"`
}

// SemesterGrades groups the course results of one semester.
type SemesterGrades struct {
	Semester  string        `json:"semester"`
	GradeList []CourseGrade `json:"gradeList"`
}

// Grades is the full transcript summary.
type Grades struct {
	TotalCredit       float64          `json:"totalCredit"`
	GPA               string           `json:"gpa"`
	GA                string           `json:"ga"`
	TotalScore        float64          `json:"totalScore"`
	SemesterGradeList []SemesterGrades `json:"semesterGradeList"`
}

// CalendarDay is one day of the academic calendar. Field names mirror the
// upstream payload: xnxq school year+term, ny year-month, zc academic week
// (null during holidays), xqj day of week, rq date, rc day note.
type CalendarDay struct {
	Xnxq string  `json:"xnxq"`
	Ny   string  `json:"ny"`
	Zc   *string `json:"zc"`
	Xqj  string  `json:"xqj"`
	Rq   string  `json:"rq"`
	Rc   *string `json:"rc"`
}

// WeekText renders the academic-week label the portal shows for a day.
func (d CalendarDay) WeekText() string {
	if d.Zc == nil {
		return "假期"
	}
	if *d.Zc == "0" {
		return "准备周"
	}
	return "第" + *d.Zc + "周"
}
