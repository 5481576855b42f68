package di

import (
	"fmt"

	"go.uber.org/zap"
)

// Resolver autowires the arguments left unresolved by the Builder. It only
// annotates definitions; nothing is instantiated.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger}
}

// Resolve fills every constructor argument, setter call and property of the
// graph's non-excluded definitions. Precedence per injection point:
//
//  1. an argument from the declaration file
//  2. an explicit service id
//  3. a tag on a collection parameter
//  4. the definition or alias whose id is the parameter type, otherwise the
//     only definition matching the type
//  5. the default value, then nil for optional parameters
func (r *Resolver) Resolve(g *Graph) error {
	if g.frozen {
		return ErrFrozen
	}
	for _, def := range g.defs {
		if def.Exclude || def.Synthetic {
			continue
		}
		md, ok := g.meta[def.ID]
		if !ok {
			continue
		}
		for i := range def.Arguments {
			p := md.Params[i]
			if def.Arguments[i].Kind != Unresolved {
				if err := r.checkExplicit(g, def, p, def.Arguments[i]); err != nil {
					return err
				}
				continue
			}
			arg, _, err := r.resolve(g, def, p)
			if err != nil {
				return err
			}
			def.Arguments[i] = arg
		}

		calls, err := r.injections(g, def, def.Calls, md.Setters)
		if err != nil {
			return err
		}
		def.Calls = calls
		props, err := r.injections(g, def, def.Properties, md.Properties)
		if err != nil {
			return err
		}
		def.Properties = props
	}
	return nil
}

func (r *Resolver) injections(g *Graph, def *Definition, calls []Call, points []Injection) ([]Call, error) {
	byName := make(map[string]Injection, len(points))
	for _, inj := range points {
		byName[inj.Name] = inj
	}
	out := calls[:0]
	for _, call := range calls {
		if call.Argument.Kind != Unresolved {
			out = append(out, call)
			continue
		}
		inj, ok := byName[call.Method]
		if !ok {
			return nil, fmt.Errorf("di: service %q has no injection point %q", def.ID, call.Method)
		}
		arg, keep, err := r.resolve(g, def, inj.Param)
		if err != nil {
			return nil, err
		}
		if !keep {
			r.logger.Debug("dropping optional injection", zap.String("service", def.ID), zap.String("method", call.Method))
			continue
		}
		call.Argument = arg
		out = append(out, call)
	}
	return out, nil
}

// resolve returns the argument for p. keep is false when an optional
// injection point has nothing to inject.
func (r *Resolver) resolve(g *Graph, def *Definition, p Param) (arg Argument, keep bool, err error) {
	if p.Autowire != nil && p.Autowire.ServiceID != "" {
		id := p.Autowire.ServiceID
		if target, ok := g.lookup(id); ok && !target.Exclude {
			return RefArg(id), true, nil
		}
		if p.Optional {
			return nullLiteral, false, nil
		}
		return Argument{}, false, &UnresolvedDependencyError{
			Service: def.ID,
			Param:   p.Name,
			Target:  "@" + id,
			Reason:  fmt.Sprintf("service %q does not exist or is excluded", id),
		}
	}

	if p.Collection && p.Autowire != nil && p.Autowire.Tag != "" {
		return TaggedArg(p.Autowire.Tag), true, nil
	}

	if def.Autowire && p.Type != "" && !p.Collection {
		if target, ok := g.lookup(p.Type); ok && target.ID != def.ID && !target.Exclude {
			return RefArg(p.Type), true, nil
		}
		candidates := g.candidates(p.Type, def.ID)
		switch len(candidates) {
		case 0:
		case 1:
			return RefArg(candidates[0]), true, nil
		default:
			return Argument{}, false, &AmbiguousServiceError{
				Service:    def.ID,
				Param:      p.Name,
				Type:       p.Type,
				Candidates: candidates,
			}
		}
	}

	if p.HasDefault() {
		return Argument{Kind: Literal, Value: append([]byte(nil), p.Default...)}, true, nil
	}
	if p.Optional {
		return nullLiteral, false, nil
	}
	if p.Type == "" {
		return Argument{}, false, &UnresolvableParameterError{Service: def.ID, Param: p.Name}
	}

	target, reason := p.Type, "no service matches"
	switch {
	case p.Collection:
		target, reason = "[]"+p.Type, "collection parameters need a tag"
	case !def.Autowire:
		reason = "autowiring is disabled for this service"
	}
	return Argument{}, false, &UnresolvedDependencyError{Service: def.ID, Param: p.Name, Target: target, Reason: reason}
}

// checkExplicit validates references supplied by the declaration file.
func (r *Resolver) checkExplicit(g *Graph, def *Definition, p Param, arg Argument) error {
	if arg.Kind != Reference {
		return nil
	}
	if target, ok := g.lookup(arg.Ref); ok && !target.Exclude {
		return nil
	}
	return &UnresolvedDependencyError{
		Service: def.ID,
		Param:   p.Name,
		Target:  "@" + arg.Ref,
		Reason:  fmt.Sprintf("service %q does not exist or is excluded", arg.Ref),
	}
}

// candidates returns the non-excluded definitions matching typ in discovery
// order, skipping self.
func (g *Graph) candidates(typ, self string) []string {
	var out []string
	for _, d := range g.defs {
		if d.Exclude || d.ID == self {
			continue
		}
		if d.Matches(typ) {
			out = append(out, d.ID)
		}
	}
	return out
}
