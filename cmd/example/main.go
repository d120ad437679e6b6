// Exemple d'utilisation du moteur de stockage dplyshard.
// Démontre insert/select/delete, l'aller-retour d'un gros payload, les
// transactions (commit/rollback) et des inserts concurrents.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/dplyshard/dplyshard/shard"
)

func main() {
	path := flag.String("db", "example.shard", "path to the shard file")
	flag.Parse()
	defer os.Remove(*path)

	s, err := shard.Open(*path, 8192)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	fmt.Println("=== dplyshard — Exemple d'utilisation ===")
	fmt.Println()

	// -------------------------------------------------------
	// 1. INSERT / SELECT
	// -------------------------------------------------------
	fmt.Println("--- INSERT ---")
	pk1, err := s.InsertString("Hello, World!", nil)
	if err != nil {
		log.Fatalf("insert error: %v", err)
	}
	fmt.Printf("  pk=%d\n", pk1)

	pk2, err := s.Insert([]byte{1, 2, 3, 4, 5}, nil)
	if err != nil {
		log.Fatalf("insert error: %v", err)
	}
	fmt.Printf("  pk=%d (raw bytes)\n", pk2)
	fmt.Println()

	fmt.Println("--- SELECT ---")
	if v, ok, err := s.SelectString(pk1, nil); err != nil {
		log.Fatalf("select error: %v", err)
	} else {
		fmt.Printf("  pk=%d -> %q (found=%v)\n", pk1, v, ok)
	}
	if v, err := s.Select(pk2, nil); err != nil {
		log.Fatalf("select error: %v", err)
	} else {
		fmt.Printf("  pk=%d -> %v\n", pk2, v)
	}
	fmt.Println()

	// -------------------------------------------------------
	// 2. Gros payload : plus gros qu'une page. Une suite de "A" est
	// compressée par snappy et tient dans la page (pas de chaîne
	// d'overflow) ; seul l'aller-retour est vérifié.
	// -------------------------------------------------------
	fmt.Println("--- Large payload ---")
	big := strings.Repeat("A", 10000)
	pkBig, err := s.InsertString(big, nil)
	if err != nil {
		log.Fatalf("insert error: %v", err)
	}
	got, _, err := s.SelectString(pkBig, nil)
	if err != nil {
		log.Fatalf("select error: %v", err)
	}
	fmt.Printf("  pk=%d, round-trip of %d bytes ok=%v\n\n", pkBig, len(big), got == big)

	// -------------------------------------------------------
	// 3. Transactions : delete visible seulement dans la tx, puis commit
	// -------------------------------------------------------
	fmt.Println("--- Transaction: delete, check visibility, commit ---")
	tx := s.CreateTransaction()
	if err := s.Delete(pk1, tx); err != nil {
		log.Fatalf("delete error: %v", err)
	}
	if v, err := s.Select(pk1, tx); err != nil {
		log.Fatalf("select error: %v", err)
	} else {
		fmt.Printf("  inside deleting tx: %v (expected nil)\n", v)
	}
	if v, ok, err := s.SelectString(pk1, nil); err != nil {
		log.Fatalf("select error: %v", err)
	} else {
		fmt.Printf("  outside the tx (no-tx reader): %q ok=%v (expected still visible)\n", v, ok)
	}
	if err := tx.Commit(); err != nil {
		log.Fatalf("commit error: %v", err)
	}
	if v, err := s.Select(pk1, nil); err != nil {
		log.Fatalf("select error: %v", err)
	} else {
		fmt.Printf("  after commit: %v (expected nil)\n\n", v)
	}

	// -------------------------------------------------------
	// 4. Transactions : delete puis rollback restaure la valeur
	// -------------------------------------------------------
	fmt.Println("--- Transaction: delete then rollback ---")
	tx2 := s.CreateTransaction()
	if err := s.Delete(pk2, tx2); err != nil {
		log.Fatalf("delete error: %v", err)
	}
	if err := tx2.Rollback(); err != nil {
		log.Fatalf("rollback error: %v", err)
	}
	if v, err := s.Select(pk2, nil); err != nil {
		log.Fatalf("select error: %v", err)
	} else {
		fmt.Printf("  after rollback: %v (expected restored)\n\n", v)
	}

	// -------------------------------------------------------
	// 5. Inserts concurrents
	// -------------------------------------------------------
	fmt.Println("--- Concurrent inserts (10 goroutines x 100 records) ---")
	var wg sync.WaitGroup
	pksCh := make(chan uint64, 1000)
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(gid int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				pk, err := s.InsertString(fmt.Sprintf("gid=%d idx=%d", gid, i), nil)
				if err != nil {
					log.Printf("  concurrent insert error: %v", err)
					continue
				}
				pksCh <- pk
			}
		}(g)
	}
	wg.Wait()
	close(pksCh)

	count := 0
	for range pksCh {
		count++
	}
	fmt.Printf("  Total records inserted: %d (expected 1000)\n\n", count)

	fmt.Println("=== Done ===")
}
