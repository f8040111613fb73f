// Command report prints the sales reports for a time window as tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"marketplace/internal/apperr"
	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/money"
	"marketplace/internal/service"
)

func main() {
	var (
		from   = flag.String("from", time.Now().UTC().AddDate(0, 0, -30).Format(time.DateOnly), "window start (YYYY-MM-DD, inclusive)")
		to     = flag.String("to", time.Now().UTC().AddDate(0, 0, 1).Format(time.DateOnly), "window end (YYYY-MM-DD, exclusive)")
		report = flag.String("report", "all", "revenue, top-product, top-vendor or all")
	)
	flag.Parse()

	window, err := parseWindow(*from, *to)
	if err != nil {
		log.Fatal(err)
	}

	config.Load()
	cfg := config.AppEnv
	if cfg.MongoURI == "" {
		log.Fatal("MONGO_URI is required")
	}
	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect(context.Background())

	svc := service.New(database.NewMongoStore(client.Database(cfg.DBName)))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, os.Stdout, svc, *report, window); err != nil {
		log.Fatal(err)
	}
}

func parseWindow(from, to string) (service.Window, error) {
	start, err := time.Parse(time.DateOnly, from)
	if err != nil {
		return service.Window{}, fmt.Errorf("invalid -from: %w", err)
	}
	end, err := time.Parse(time.DateOnly, to)
	if err != nil {
		return service.Window{}, fmt.Errorf("invalid -to: %w", err)
	}
	return service.Window{From: start, To: end}, nil
}

// reporter is the slice of the service the command reads from.
type reporter interface {
	VendorRevenue(ctx context.Context, w service.Window) ([]service.VendorRevenue, error)
	TopProduct(ctx context.Context, w service.Window) (service.ProductSales, error)
	TopVendor(ctx context.Context, w service.Window) (service.VendorRevenue, error)
}

func run(ctx context.Context, out io.Writer, r reporter, which string, w service.Window) error {
	fmt.Fprintf(out, "window %s .. %s\n", w.From.Format(time.DateOnly), w.To.Format(time.DateOnly))

	switch which {
	case "revenue", "top-product", "top-vendor", "all":
	default:
		return fmt.Errorf("unknown report %q", which)
	}

	if which == "revenue" || which == "all" {
		rows, err := r.VendorRevenue(ctx, w)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "\nvendor revenue")
		if err := renderVendors(out, rows); err != nil {
			return err
		}
	}

	if which == "top-product" || which == "all" {
		top, err := r.TopProduct(ctx, w)
		switch {
		case apperr.IsKind(err, apperr.KindNotFound):
			fmt.Fprintln(out, "\ntop product: no sales")
		case err != nil:
			return err
		default:
			fmt.Fprintln(out, "\ntop product")
			if err := renderProducts(out, []service.ProductSales{top}); err != nil {
				return err
			}
		}
	}

	if which == "top-vendor" || which == "all" {
		top, err := r.TopVendor(ctx, w)
		switch {
		case apperr.IsKind(err, apperr.KindNotFound):
			fmt.Fprintln(out, "\ntop vendor: no sales")
		case err != nil:
			return err
		default:
			fmt.Fprintln(out, "\ntop vendor")
			if err := renderVendors(out, []service.VendorRevenue{top}); err != nil {
				return err
			}
		}
	}
	return nil
}

func renderVendors(out io.Writer, rows []service.VendorRevenue) error {
	table := tablewriter.NewWriter(out)
	table.Header("Vendor", "Name", "Email", "Quantity", "Revenue")
	for _, row := range rows {
		if err := table.Append(row.VendorID.Hex(), row.Name, row.Email, fmt.Sprint(row.Quantity), money.Format(row.Revenue)); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderProducts(out io.Writer, rows []service.ProductSales) error {
	table := tablewriter.NewWriter(out)
	table.Header("Product", "Name", "Vendor", "Quantity", "Revenue")
	for _, row := range rows {
		if err := table.Append(row.ProductID.Hex(), row.Name, row.VendorID.Hex(), fmt.Sprint(row.Quantity), money.Format(row.Revenue)); err != nil {
			return err
		}
	}
	return table.Render()
}
