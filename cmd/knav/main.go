// knav is a terminal driver for the reading engine. It opens a book from
// a Komga server or a local comic archive and steps through it with a
// small stdin command language.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"knav/archive"
	"knav/config"
	"knav/imagecache"
	"knav/komga"
	"knav/reader"
)

func sortMethodFromName(name string, fallback int) int {
	switch strings.ToLower(name) {
	case "natural":
		return archive.SortNatural
	case "simple":
		return archive.SortSimple
	case "entry":
		return archive.SortEntryOrder
	case "":
		return fallback
	default:
		log.Printf("Warning: unknown sort method %q, keeping %s",
			name, archive.GetSortStrategy(fallback).Name())
		return fallback
	}
}

func main() {
	configPath := flag.String("config", "", "config file path (default ~/.knav.json)")
	server := flag.String("server", "", "Komga server URL")
	apiKey := flag.String("apikey", "", "Komga API key")
	bookID := flag.String("book", "", "Komga book ID to open")
	seriesID := flag.String("series", "", "series ID for direction lookup (default: resolved from the book)")
	page := flag.Int("page", 0, "1-based page number to start at")
	sortName := flag.String("sort", "", "archive page order: natural, simple or entry")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	reader.SetDebug(*debug)

	var result config.LoadResult
	if *configPath != "" {
		result = config.LoadFromPath(*configPath)
	} else {
		result = config.Load()
	}
	for _, w := range result.Warnings {
		log.Printf("Warning: config: %s", w)
	}
	cfg := result.Config

	if *server != "" {
		cfg.ServerURL = *server
	}
	if *apiKey != "" {
		cfg.APIKey = *apiKey
	}
	cfg.SortMethod = sortMethodFromName(*sortName, cfg.SortMethod)

	opts := reader.Options{
		Store:            imagecache.New(cfg.CacheSize),
		Direction:        cfg.Direction(),
		Incognito:        cfg.Incognito,
		ExcludeCover:     cfg.NoCover,
		PrefetchWindow:   cfg.PreloadCount,
		Capabilities:     reader.Capabilities{ContinuousScroll: true},
		PageWidth:        float64(cfg.PageWidth),
		PlaceholderRatio: cfg.PlaceholderRatio,
	}
	if cfg.DualPage {
		opts.Layout = reader.LayoutDual
	}

	ctx := context.Background()
	openID := *bookID
	openSeries := *seriesID

	switch {
	case flag.NArg() > 0:
		book, err := archive.Open(flag.Arg(0), cfg.SortMethod)
		if err != nil {
			log.Fatal(err)
		}
		opts.Catalog = book
		opts.Images = book
		openID = book.ID()
	case cfg.ServerURL != "" && *bookID != "":
		var copts []komga.Option
		if cfg.APIKey != "" {
			copts = append(copts, komga.WithAPIKey(cfg.APIKey))
		} else if cfg.Username != "" {
			copts = append(copts, komga.WithBasicAuth(cfg.Username, cfg.Password))
		}
		client := komga.NewClient(cfg.ServerURL, copts...)
		opts.Catalog = client
		opts.Images = client
		opts.Progress = client
		opts.NextBooks = client
		opts.Directions = client
		if openSeries == "" {
			if info, err := client.Book(ctx, *bookID); err == nil {
				openSeries = info.SeriesID
			} else {
				log.Printf("Warning: could not resolve series for %s: %v", *bookID, err)
			}
		}
	default:
		log.Fatal("nothing to open: pass a local archive path, or -server and -book")
	}

	session := reader.NewSession(opts)
	defer session.Close()
	session.SetPrefetchEnabled(cfg.PreloadEnabled)
	session.OnChange(func(ch reader.Change) {
		if *debug {
			log.Printf("committed page %d (state %v)", ch.PageIndex, ch.State)
		}
	})

	if err := session.LoadBook(ctx, openID, openSeries, *page); err != nil {
		log.Fatalf("opening %s: %v", openID, err)
	}

	printStatus(session)
	runCommandLoop(ctx, session, cfg.NoCover)
}

// runCommandLoop reads one command per line from stdin until EOF or "q".
func runCommandLoop(ctx context.Context, session *reader.Session, excludeCover bool) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "n", "next":
			if session.IsAtEndPage() {
				advanced, err := session.NextBook(ctx)
				if err != nil {
					log.Printf("Warning: opening next book: %v", err)
				} else if advanced {
					fmt.Printf("opened %s\n", session.BookID())
				} else {
					fmt.Println("no next book")
				}
			} else {
				session.GoToNextPage()
			}
		case "p", "prev":
			session.GoToPreviousPage()
		case "g", "goto":
			if len(args) != 1 {
				fmt.Println("usage: g <page>")
				continue
			}
			number, err := strconv.Atoi(args[0])
			if err != nil {
				fmt.Printf("bad page number %q\n", args[0])
				continue
			}
			session.JumpToPage(number)
		case "first":
			session.JumpToPage(1)
		case "last":
			session.JumpToPage(len(session.Pages()))
		case "d", "dir":
			if len(args) == 1 {
				dir, ok := reader.ParseDirection(args[0])
				if !ok {
					fmt.Printf("unknown direction %q\n", args[0])
					continue
				}
				session.SetDirection(dir)
			} else {
				session.SetDirection(nextDirection(session.ReadingDirection()))
			}
		case "l", "layout":
			if session.PageLayout() == reader.LayoutSingle {
				session.UpdatePageLayout(reader.LayoutDual)
			} else {
				session.UpdatePageLayout(reader.LayoutSingle)
			}
		case "c", "cover":
			excludeCover = !excludeCover
			session.UpdateDualPageSettings(excludeCover)
		case "stats":
			st := session.PrefetchStats()
			fmt.Printf("prefetch: loaded=%d failed=%d center=%d\n",
				st.Loaded, st.Failed, st.LastCenter)
			continue
		case "q", "quit":
			return
		case "h", "help":
			printHelp()
			continue
		default:
			fmt.Printf("unknown command %q (h for help)\n", cmd)
			continue
		}

		printStatus(session)
	}
}

func nextDirection(d reader.Direction) reader.Direction {
	switch d {
	case reader.DirectionLTR:
		return reader.DirectionRTL
	case reader.DirectionRTL:
		return reader.DirectionWebtoon
	default:
		return reader.DirectionLTR
	}
}

func printStatus(session *reader.Session) {
	pages := session.Pages()
	if len(pages) == 0 {
		fmt.Printf("no book open: %s\n", session.ErrorMessage())
		return
	}

	slide := session.CurrentSlide()
	var position string
	switch {
	case session.IsAtEndPage():
		position = "END"
	case slide.IsSpread():
		position = fmt.Sprintf("pages %d-%d", slide.First+1, slide.Second+1)
	default:
		position = fmt.Sprintf("page %d", slide.First+1)
	}
	fmt.Printf("[%s] %s of %d (%s, %s)\n",
		session.BookID(), position, len(pages),
		session.ReadingDirection(), session.PageLayout())
}

func printHelp() {
	fmt.Print(`commands:
  n          next page (or next book at the end)
  p          previous page
  g <page>   go to page number
  first      go to the first page
  last       go to the last page
  d [dir]    cycle or set reading direction (ltr, rtl, vertical, webtoon)
  l          toggle single/dual page layout
  c          toggle cover exclusion in dual layout
  stats      show prefetch statistics
  q          quit
`)
}
