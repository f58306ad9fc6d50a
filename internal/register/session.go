// Package register implements the cashier's line-oriented register session.
package register

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/ramen-pos/internal/checkout"
	"github.com/xenking/ramen-pos/internal/domain/order"
	"github.com/xenking/ramen-pos/internal/domain/product"
)

// Submitter places a draft.
type Submitter interface {
	Submit(ctx context.Context, draft order.Draft, label string) (*checkout.Confirmation, error)
}

// ReceiptWriter stores a receipt for a placed order.
type ReceiptWriter interface {
	Write(conf *checkout.Confirmation) (string, error)
}

// Options configures a Session.
type Options struct {
	Catalog   product.Catalog
	Submitter Submitter
	// Receipts is optional.
	Receipts ReceiptWriter
	// TaxRate is shown on the draft totals and should match the one the
	// Submitter prices with.
	TaxRate decimal.Decimal
	In      io.Reader
	Out     io.Writer
	Logger  *zap.Logger
}

// Session holds one cashier's menu, draft and bill label.
type Session struct {
	catalog  product.Catalog
	submit   Submitter
	receipts ReceiptWriter
	taxRate  decimal.Decimal
	in       io.Reader
	out      io.Writer
	lg       *zap.Logger

	menu  []product.MenuItem
	draft order.Draft
	label string
}

// NewSession creates a Session. The menu is loaded by Run.
func NewSession(opts Options) (*Session, error) {
	if opts.Catalog == nil || opts.Submitter == nil {
		return nil, errors.New("catalog and submitter are required")
	}
	if opts.In == nil || opts.Out == nil {
		return nil, errors.New("input and output are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Session{
		catalog:  opts.Catalog,
		submit:   opts.Submitter,
		receipts: opts.Receipts,
		taxRate:  opts.TaxRate,
		in:       opts.In,
		out:      opts.Out,
		lg:       opts.Logger,
		draft:    order.NewDraft(),
	}, nil
}

// Draft returns the current draft.
func (s *Session) Draft() order.Draft { return s.draft }

// Label returns the current bill label.
func (s *Session) Label() string { return s.label }

// Run loads the menu and executes commands until quit, end of input or
// context cancellation.
func (s *Session) Run(ctx context.Context) error {
	if err := s.refreshMenu(ctx); err != nil {
		return errors.Wrap(err, "load menu")
	}
	s.printf("%d menu items loaded. Type help for commands.\n", len(s.menu))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(s.in)
		defer func() {
			scanErr <- sc.Err()
			close(lines)
		}()
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		s.printf("> ")
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return errors.Wrap(err, "read input")
				}
				return nil
			}
			if quit := s.Exec(ctx, line); quit {
				return nil
			}
		}
	}
}

// Exec runs one command line and reports whether the session should end.
// Command failures are reported to the cashier, never returned.
func (s *Session) Exec(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "":
	case "menu":
		s.printMenu()
	case "add":
		s.add(arg)
	case "remove", "rm":
		s.remove(arg)
	case "show":
		s.printDraft()
	case "label":
		s.label = arg
		s.printf("Label set to %q.\n", s.label)
	case "checkout":
		if arg != "" {
			s.label = arg
		}
		s.checkout(ctx)
	case "clear":
		s.draft = s.draft.Clear()
		s.printf("Draft cleared.\n")
	case "help":
		s.printHelp()
	case "quit", "exit":
		return true
	default:
		s.printf("Unknown command %q. Type help for commands.\n", cmd)
	}
	return false
}

func (s *Session) add(id string) {
	if id == "" {
		s.printf("Usage: add <item id>\n")
		return
	}
	item, err := product.Find(s.menu, id)
	if err != nil {
		s.printf("No menu item %q.\n", id)
		return
	}
	if !item.Available() {
		s.printf("%s is not available.\n", item.Name)
		return
	}
	if s.draft.Quantity(item.ID) >= item.Stock {
		s.printf("Only %d of %s in stock.\n", item.Stock, item.Name)
		return
	}
	s.draft = s.draft.AddItem(item)
	s.printf("Added %s (x%d).\n", item.Name, s.draft.Quantity(item.ID))
}

func (s *Session) remove(id string) {
	if id == "" {
		s.printf("Usage: remove <item id>\n")
		return
	}
	if s.draft.Quantity(id) == 0 {
		s.printf("%q is not in the draft.\n", id)
		return
	}
	s.draft = s.draft.RemoveItem(id)
	s.printf("Removed %s.\n", id)
}

func (s *Session) checkout(ctx context.Context) {
	conf, err := s.submit.Submit(ctx, s.draft, s.label)
	if err != nil {
		if errors.Is(err, order.ErrEmptyDraft) {
			s.printf("Nothing to check out.\n")
			return
		}
		s.printf("Checkout failed: %v\nThe draft was kept, try again.\n", err)
		return
	}

	if conf.OrderID != "" {
		s.printf("Order %s placed for %q, total %s.\n", conf.OrderID, conf.Label, formatAmount(conf.Totals.GrandTotal))
	} else {
		s.printf("Order placed for %q, total %s.\n", conf.Label, formatAmount(conf.Totals.GrandTotal))
	}
	s.draft = s.draft.Clear()
	s.label = ""

	if s.receipts != nil && conf.OrderID != "" {
		path, err := s.receipts.Write(conf)
		if err != nil {
			s.lg.Warn("Receipt failed", zap.String("order_id", conf.OrderID), zap.Error(err))
			s.printf("Receipt could not be written: %v\n", err)
		} else {
			s.printf("Receipt saved to %s.\n", path)
		}
	}

	// Stock changed on the backend.
	if err := s.refreshMenu(ctx); err != nil {
		s.lg.Warn("Menu refresh failed", zap.Error(err))
		s.printf("Menu refresh failed: %v\n", err)
	}
}

func (s *Session) refreshMenu(ctx context.Context) error {
	menu, err := s.catalog.ListMenu(ctx)
	if err != nil {
		return err
	}
	s.menu = menu
	return nil
}

func (s *Session) printMenu() {
	if len(s.menu) == 0 {
		s.printf("The menu is empty.\n")
		return
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK\t")
	for _, item := range s.menu {
		stock := fmt.Sprint(item.Stock)
		if !item.Available() {
			stock = "sold out"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", item.ID, item.Name, formatAmount(item.UnitPrice), stock)
	}
	_ = tw.Flush()
}

func (s *Session) printDraft() {
	if s.draft.IsEmpty() {
		s.printf("The draft is empty.\n")
		return
	}
	if s.label != "" {
		s.printf("Bill: %s\n", s.label)
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ITEM\tQTY\tPRICE\tAMOUNT\t")
	for _, l := range s.draft.Lines() {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t\n", l.Name, l.Quantity, formatAmount(l.UnitPrice), formatAmount(l.Amount()))
	}
	t := s.draft.Totals(s.taxRate)
	fmt.Fprintf(tw, "Subtotal\t\t\t%s\t\n", formatAmount(t.Subtotal))
	fmt.Fprintf(tw, "Tax (%s%%)\t\t\t%s\t\n", s.taxRate.Shift(2).String(), formatAmount(t.Tax))
	fmt.Fprintf(tw, "Total\t\t\t%s\t\n", formatAmount(t.GrandTotal))
	_ = tw.Flush()
}

func (s *Session) printHelp() {
	s.printf(`Commands:
  menu              list the menu
  add <id>          add one of a menu item
  remove <id>       drop a line from the draft
  show              show the draft with totals
  label <name>      set the bill label
  checkout [label]  place the order
  clear             empty the draft
  quit              leave the register
`)
}

func (s *Session) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

// formatAmount renders minor units with thousands separators.
func formatAmount(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	digits := fmt.Sprint(v)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
