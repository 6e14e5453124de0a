package registry

import (
	"fmt"
	"regexp"

	"github.com/agentoven/promptplane/pkg/models"
)

// Parameters is the published parameter registry.
type Parameters = Table[models.ParameterDefinition]

// Interactions is the published interaction registry.
type Interactions = Table[models.Interaction]

var (
	identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	// Extraction paths are dotted keys and integer indexes only.
	pathRe = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)*$`)
)

// ValidIdentifier reports whether s is a valid placeholder identifier.
func ValidIdentifier(s string) bool { return identRe.MatchString(s) }

// ValidPath reports whether s is a valid extraction path.
func ValidPath(s string) bool { return pathRe.MatchString(s) }

// BuildParameters publishes defs as a parameter registry, rejecting invalid
// names, types and extraction paths.
func BuildParameters(defs []models.ParameterDefinition) (*Parameters, error) {
	b := NewBuilder[models.ParameterDefinition]("parameter")
	for _, d := range defs {
		if !ValidIdentifier(d.Name) {
			return nil, fmt.Errorf("parameter %q: invalid identifier", d.Name)
		}
		if !d.Type.Valid() {
			return nil, fmt.Errorf("parameter %q: unknown type %q", d.Name, d.Type)
		}
		if d.ExtractionPath != "" && !ValidPath(d.ExtractionPath) {
			return nil, fmt.Errorf("parameter %q: invalid extraction path %q", d.Name, d.ExtractionPath)
		}
		if d.Default != nil {
			d.HasDefault = true
		}
		if err := b.Add(d.Name, d); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// BuildInteractions publishes defs as an interaction registry. Every declared
// parameter must exist in params.
func BuildInteractions(defs []models.Interaction, params *Parameters) (*Interactions, error) {
	b := NewBuilder[models.Interaction]("interaction")
	for _, in := range defs {
		for _, p := range in.Parameters() {
			if params != nil && !params.Has(p) {
				return nil, fmt.Errorf("interaction %q: unknown parameter %q", in.Code, p)
			}
		}
		if err := b.Add(in.Code, in); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// DefaultParameters is the static parameter table of the coaching product.
func DefaultParameters() []models.ParameterDefinition {
	return []models.ParameterDefinition{
		// Person
		{Name: "user_name", Type: models.ParamString, Required: true, Description: "Display name of the coached user",
			RetrievalMethod: "get_user_profile", ExtractionPath: "user.name"},
		{Name: "user_role", Type: models.ParamString, Description: "Job title of the coached user",
			RetrievalMethod: "get_user_profile", ExtractionPath: "user.role", Default: "team member"},
		{Name: "manager_name", Type: models.ParamString, Description: "Name of the user's manager",
			RetrievalMethod: "get_user_profile", ExtractionPath: "user.manager.name"},

		// Goals
		{Name: "goals", Type: models.ParamArray, Description: "Titles of the user's active goals",
			RetrievalMethod: "get_user_goals", ExtractionPath: "titles"},
		{Name: "goal_count", Type: models.ParamInteger, Description: "Number of active goals",
			RetrievalMethod: "get_user_goals", ExtractionPath: "count", Default: 0},
		{Name: "primary_goal_title", Type: models.ParamString, Description: "Title of the highest priority goal",
			RetrievalMethod: "get_user_goals", ExtractionPath: "goals.0.title"},
		{Name: "goal_title", Type: models.ParamString, Required: true, Description: "Title of the goal under discussion",
			RetrievalMethod: "get_goal_details", ExtractionPath: "goal.title"},
		{Name: "goal_description", Type: models.ParamString, Description: "Description of the goal under discussion",
			RetrievalMethod: "get_goal_details", ExtractionPath: "goal.description", Default: ""},
		{Name: "goal_progress", Type: models.ParamInteger, Description: "Completion percentage of the goal under discussion",
			RetrievalMethod: "get_goal_details", ExtractionPath: "goal.progress"},

		// Team
		{Name: "team_members", Type: models.ParamArray, Description: "Names of the user's direct team",
			RetrievalMethod: "get_team", ExtractionPath: "names"},
		{Name: "team_size", Type: models.ParamInteger, Description: "Size of the user's direct team",
			RetrievalMethod: "get_team", ExtractionPath: "size", Default: 0},

		// Issues
		{Name: "open_issues", Type: models.ParamArray, Description: "Titles of open issues assigned to the user",
			RetrievalMethod: "get_open_issues", ExtractionPath: "titles"},
		{Name: "issue_count", Type: models.ParamInteger, Description: "Number of open issues",
			RetrievalMethod: "get_open_issues", ExtractionPath: "count", Default: 0},
		{Name: "top_issue", Type: models.ParamString, Description: "Title of the most urgent open issue",
			RetrievalMethod: "get_open_issues", ExtractionPath: "titles.0"},

		// Organization
		{Name: "org_name", Type: models.ParamString, Description: "Organization name",
			RetrievalMethod: "get_org_profile", ExtractionPath: "organization.name"},
		{Name: "org_mission", Type: models.ParamString, Description: "Organization mission statement",
			RetrievalMethod: "get_org_profile", ExtractionPath: "organization.mission", Default: ""},
		{Name: "org_values", Type: models.ParamArray, Required: true, Description: "Organization core values",
			RetrievalMethod: "get_org_profile", ExtractionPath: "organization.values"},

		// Request-only
		{Name: "user_message", Type: models.ParamString, Description: "Free text supplied by the user in the request"},
		{Name: "coaching_style", Type: models.ParamString, Description: "Tone of the coaching response", Default: "supportive"},
		{Name: "response_format", Type: models.ParamString, Description: "Output format the model should produce", Default: "markdown"},
		{Name: "language", Type: models.ParamString, Description: "Response language (BCP 47)", Default: "en"},
	}
}

// DefaultInteractions is the static interaction table of the coaching product.
func DefaultInteractions() []models.Interaction {
	return []models.Interaction{
		{
			Code:        "alignment_analysis",
			Name:        "Alignment analysis",
			Description: "Assess how the user's goals line up with organizational values",
			Required:    []string{"user_name", "goals", "org_values"},
			Optional:    []string{"user_role", "org_mission", "coaching_style", "language"},
		},
		{
			Code:        "goal_coaching",
			Name:        "Goal coaching",
			Description: "Coach the user on progress towards one goal",
			Required:    []string{"user_name", "goal_title"},
			Optional:    []string{"goal_description", "goal_progress", "coaching_style", "user_message", "language"},
		},
		{
			Code:        "weekly_reflection",
			Name:        "Weekly reflection",
			Description: "Guide the user through an end-of-week reflection",
			Required:    []string{"user_name"},
			Optional:    []string{"goals", "goal_count", "open_issues", "user_message", "response_format"},
		},
		{
			Code:        "one_on_one_prep",
			Name:        "1:1 preparation",
			Description: "Prepare talking points for a 1:1 with the user's manager",
			Required:    []string{"user_name", "manager_name"},
			Optional:    []string{"primary_goal_title", "top_issue", "team_members", "coaching_style"},
		},
		{
			Code:        "issue_triage",
			Name:        "Issue triage",
			Description: "Help the user prioritize open issues",
			Required:    []string{"open_issues", "issue_count"},
			Optional:    []string{"team_members", "team_size", "org_name", "response_format"},
		},
	}
}
