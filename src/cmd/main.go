package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/avbraun/heapbuf/src/bufferpool"
)

func main() {
	configPath := flag.String("config", "", "path to a bufferpool config file (yaml/json/toml)")
	flag.Parse()

	var pool *bufferpool.Pool
	var err error
	if *configPath != "" {
		cfg, cfgErr := bufferpool.LoadConfig(*configPath)
		if cfgErr != nil {
			log.Fatalf("load config: %v", cfgErr)
		}
		pool, err = bufferpool.Open(*cfg)
	} else {
		disk := bufferpool.NewMemDiskFile(bufferpool.DefaultBlockSize)
		pool, err = bufferpool.NewPool(disk, 8, 1)
	}
	if err != nil {
		log.Fatalf("open pool: %v", err)
	}
	defer pool.Close()

	id, err := pool.AllocateNewPage()
	if err != nil {
		log.Fatalf("allocate page: %v", err)
	}

	buf, err := pool.GetForWrite(id)
	if err != nil {
		log.Fatalf("get for write: %v", err)
	}
	copy(buf, []byte("hello, heap file"))
	if err := pool.ReleaseWrite(id); err != nil {
		log.Fatalf("release write: %v", err)
	}

	buf, err = pool.GetForRead(id)
	if err != nil {
		log.Fatalf("get for read: %v", err)
	}
	fmt.Println(string(buf[:16]))
	if err := pool.ReleaseRead(id); err != nil {
		log.Fatalf("release read: %v", err)
	}
}
