package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/dd0wney/cluso-docgraph/pkg/graph"
	"github.com/dd0wney/cluso-docgraph/pkg/protocol"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// Validation constants
	MaxBatchSize     = 1000
	MinBatchSize     = 1
	MaxPropertyKey   = 256
	MaxIDLength      = 1024
	MaxEdgeLabel     = 256
	MaxPropertyCount = 1000

	// Property keys may not carry control characters
	propKeyPattern = regexp.MustCompile(`^[^\x00-\x1f\x7f]+$`)
)

func init() {
	validate = validator.New()
}

// ValidateRequest checks the shape of a whole batch: its size, that every
// operation tag is known and that every operation's args are well formed.
func ValidateRequest(req *protocol.Request) error {
	if req == nil {
		return errors.New("request cannot be nil")
	}
	if err := ValidateBatchSize(len(req.Operations)); err != nil {
		return err
	}
	for i, op := range req.Operations {
		args, err := protocol.DecodeArgs(op)
		if err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
		if err := ValidateArgs(args); err != nil {
			return fmt.Errorf("operation %d (%s): %w", i, op.Op, err)
		}
	}
	for id := range req.KnownETags {
		if id == "" {
			return errors.New("knownEtags: document id cannot be empty")
		}
	}
	return nil
}

// ValidateArgs validates one decoded operation's args. args must be one of
// the pointer types returned by protocol.DecodeArgs.
func ValidateArgs(args any) error {
	if args == nil {
		return errors.New("args cannot be nil")
	}

	// Validate using struct tags
	if err := validate.Struct(args); err != nil {
		return formatValidationError(err)
	}

	switch a := args.(type) {
	case *protocol.AddVertexArgs:
		return validateVertex(a.Vertex)
	case *protocol.AddEdgeArgs:
		if a.Edge.OtherVertexID != "" {
			other := a.SinkID
			if a.IsReverse {
				other = a.SrcID
			}
			if a.Edge.OtherVertexID != other {
				return fmt.Errorf("Edge: opposite vertex %q does not match %q", a.Edge.OtherVertexID, other)
			}
		}
		return validateEdge(&a.Edge)
	case *protocol.DropVertexPropertyArgs:
		return ValidatePropertyKey(a.PropertyName)
	case *protocol.DropVertexSinglePropertyArgs:
		return ValidatePropertyKey(a.PropertyName)
	case *protocol.DropVertexSinglePropertyMetaPropertyArgs:
		return ValidatePropertyKey(a.PropertyName)
	case *protocol.DropEdgeArgs:
		return nil
	case *protocol.DropEdgePropertyArgs:
		for _, name := range a.PropertyNames {
			if err := ValidatePropertyKey(name); err != nil {
				return fmt.Errorf("PropertyNames: %w", err)
			}
		}
		return nil
	case *protocol.UpdateEdgePropertyArgs:
		for key := range a.Properties {
			if err := ValidatePropertyKey(key); err != nil {
				return fmt.Errorf("Properties: %w", err)
			}
		}
		return nil
	case *protocol.UpdateVertexPropertyArgs:
		for i, u := range a.Updates {
			if err := ValidatePropertyKey(u.Key); err != nil {
				return fmt.Errorf("Updates[%d]: %w", i, err)
			}
			if u.Value.ID == "" {
				return fmt.Errorf("Updates[%d]: value id is required", i)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported args type %T", args)
	}
}

func validateVertex(v *graph.VertexDocument) error {
	if v.ID == "" {
		return errors.New("Vertex: id is required")
	}
	if len(v.ID) > MaxIDLength {
		return fmt.Errorf("Vertex: id exceeds maximum length of %d characters", MaxIDLength)
	}
	if v.Partition != "" && v.Partition != v.ID {
		return fmt.Errorf("Vertex: partition %q must equal id %q", v.Partition, v.ID)
	}
	if v.OutSpilled || v.InSpilled {
		return errors.New("Vertex: a new vertex cannot start spilled")
	}
	if len(v.Properties) > MaxPropertyCount {
		return fmt.Errorf("Vertex: maximum %d properties allowed, got %d", MaxPropertyCount, len(v.Properties))
	}
	for key := range v.Properties {
		if err := ValidatePropertyKey(key); err != nil {
			return fmt.Errorf("Vertex: %w", err)
		}
	}
	for _, dir := range []graph.Direction{graph.Out, graph.In} {
		for i := range v.Edges(dir) {
			if err := validateEdge(&v.Edges(dir)[i]); err != nil {
				return fmt.Errorf("Vertex %s edges: %w", dir, err)
			}
		}
	}
	return nil
}

func validateEdge(e *graph.EmbeddedEdge) error {
	if e.ID == "" {
		return errors.New("Edge: id is required")
	}
	if len(e.ID) > MaxIDLength {
		return fmt.Errorf("Edge: id exceeds maximum length of %d characters", MaxIDLength)
	}
	if len(e.Label) > MaxEdgeLabel {
		return fmt.Errorf("Edge: label exceeds maximum length of %d characters", MaxEdgeLabel)
	}
	for key := range e.Properties {
		if err := ValidatePropertyKey(key); err != nil {
			return fmt.Errorf("Edge: %w", err)
		}
	}
	return nil
}

// ValidateBatchSize validates the number of operations in a batch
func ValidateBatchSize(size int) error {
	if size < MinBatchSize {
		return fmt.Errorf("batch size must be at least %d, got %d", MinBatchSize, size)
	}
	if size > MaxBatchSize {
		return fmt.Errorf("batch size must not exceed %d, got %d", MaxBatchSize, size)
	}
	return nil
}

// ValidatePropertyKey validates a vertex or edge property key
func ValidatePropertyKey(key string) error {
	if key == "" {
		return errors.New("property key cannot be empty")
	}
	if len(key) > MaxPropertyKey {
		return fmt.Errorf("property key '%s' exceeds maximum length of %d characters", key, MaxPropertyKey)
	}
	if !propKeyPattern.MatchString(key) {
		return fmt.Errorf("property key %q contains control characters", key)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Return the first validation error in a user-friendly format
	for _, e := range validationErrs {
		field := e.Field()
		param := e.Param()

		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min":
			return fmt.Errorf("%s: must have at least %s entries", field, param)
		case "max":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "gte":
			return fmt.Errorf("%s: must be at least %s", field, param)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}

	return err
}
