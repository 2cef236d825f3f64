package model

// StageID identifies one of the five sequential review roles.
type StageID string

// Review stages in pipeline order.
const (
	StageStaff1 StageID = "staff1" // intake / draft review
	StageStaff2 StageID = "staff2" // trustee and party validation
	StageStaff3 StageID = "staff3" // land, map and e-stamp verification
	StageStaff4 StageID = "staff4" // cross-verification across all prior stages
	StageStaff5 StageID = "staff5" // final lock authority
)

// Stages lists all review stages in pipeline order.
var Stages = []StageID{StageStaff1, StageStaff2, StageStaff3, StageStaff4, StageStaff5}

// stageOrdinals maps each stage to its 1-based position in the pipeline.
var stageOrdinals = map[StageID]int{
	StageStaff1: 1,
	StageStaff2: 2,
	StageStaff3: 3,
	StageStaff4: 4,
	StageStaff5: 5,
}

var stageLabels = map[StageID]string{
	StageStaff1: "Intake Review",
	StageStaff2: "Party Validation",
	StageStaff3: "Land & Stamp Verification",
	StageStaff4: "Cross Verification",
	StageStaff5: "Final Approval",
}

// ParseStage validates a stage identifier coming from the outside.
func ParseStage(s string) (StageID, bool) {
	stage := StageID(s)
	_, ok := stageOrdinals[stage]
	return stage, ok
}

// Ordinal returns the 1-based pipeline position, or 0 for an unknown stage.
func (s StageID) Ordinal() int {
	return stageOrdinals[s]
}

// Valid reports whether the stage is one of staff1..staff5.
func (s StageID) Valid() bool {
	return stageOrdinals[s] != 0
}

// Label returns the human-readable name used in status displays.
func (s StageID) Label() string {
	return stageLabels[s]
}

// ActorOwner is the staff-level recorded on history entries produced by the
// form owner rather than a review stage (submission, delivery preference).
const ActorOwner = "owner"
