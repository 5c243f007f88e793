package cli

import "fmt"

// PairCmd links two accounts by email.
type PairCmd struct {
	First  string `arg:"" help:"Email of the first user."`
	Second string `arg:"" help:"Email of the second user."`
}

func (p *PairCmd) Run(ctx *Context) error {
	first, err := ctx.userByEmail(p.First)
	if err != nil {
		return err
	}
	second, err := ctx.userByEmail(p.Second)
	if err != nil {
		return err
	}
	if _, err := ctx.Users.Pair(ctx.Ctx, first.ID, second.ID); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "paired %s (%s) with %s (%s)\n", first.Name, first.Timezone, second.Name, second.Timezone)
	return nil
}

// UnpairCmd dissolves a user's pairing on both sides.
type UnpairCmd struct {
	Email string `arg:"" help:"Email of either partner."`
}

func (u *UnpairCmd) Run(ctx *Context) error {
	user, err := ctx.userByEmail(u.Email)
	if err != nil {
		return err
	}
	if _, err := ctx.Users.Unpair(ctx.Ctx, user.ID); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "unpaired %s\n", user.Name)
	return nil
}
